package main

import (
	"fmt"
	"sort"

	"edgeplace/internal/buildinfo"
)

type versionCmd struct{}

func (cmd *versionCmd) Run() error {
	info := buildinfo.Info()
	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s: %s\n", k, info[k])
	}
	return nil
}
