package catalogparser

import "embed"

// Curated catalog shipped with the binary: 30 ingredients with their aliases and rules
//
//go:embed seed/*.tsv
var seedFS embed.FS

const (
	ingredientsFile = "ingredients.tsv"
	aliasesFile     = "aliases.tsv"
	rulesFile       = "rules.tsv"
)

// catalogFiles lists the bundle members in parse order
var catalogFiles = []string{ingredientsFile, aliasesFile, rulesFile}

func readSeedBundle() (map[string][]byte, error) {
	bundle := make(map[string][]byte, len(catalogFiles))
	for _, name := range catalogFiles {
		content, err := seedFS.ReadFile("seed/" + name)
		if err != nil {
			return nil, err
		}
		bundle[name] = content
	}
	return bundle, nil
}
