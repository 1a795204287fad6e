package manifests

import "embed"

// FS embeds the manifests
//
//go:embed config/*
//go:embed probe/*
//go:embed suite/*
//go:embed workflow/*
//go:embed workload/*
var FS embed.FS
