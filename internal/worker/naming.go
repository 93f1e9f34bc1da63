package worker

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/amankumarsingh77/batch-image-compressor/internal/models"
)

// outputNamer hands out output filenames for one pipeline run. The first
// input with a given stem keeps <stem>.<format>; later ones get the source
// extension folded into the stem, then a numeric suffix.
type outputNamer struct {
	claimed map[string]struct{}
}

func newOutputNamer() *outputNamer {
	return &outputNamer{claimed: make(map[string]struct{})}
}

func (n *outputNamer) Resolve(input string, format models.OutputFormat) string {
	ext := filepath.Ext(input)
	stem := strings.TrimSuffix(input, ext)
	if stem == "" {
		stem = "image"
	}
	target := "." + string(format)

	candidates := []string{stem + target}
	if srcExt := strings.TrimPrefix(strings.ToLower(ext), "."); srcExt != "" {
		candidates = append(candidates, stem+"_"+srcExt+target)
	}
	for _, c := range candidates {
		if n.claim(c) {
			return c
		}
	}
	for i := 1; ; i++ {
		c := fmt.Sprintf("%s-%d%s", stem, i, target)
		if n.claim(c) {
			return c
		}
	}
}

func (n *outputNamer) claim(name string) bool {
	key := strings.ToLower(name)
	if _, taken := n.claimed[key]; taken {
		return false
	}
	n.claimed[key] = struct{}{}
	return true
}
