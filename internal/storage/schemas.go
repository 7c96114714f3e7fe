package storage

// Default schema tags returned with each collection's results.
const (
	SchemaGenomicVariations = "beacon-g-variant-v2.0.0"
	SchemaBiosamples        = "beacon-biosample-v2.0.0"
	SchemaIndividuals       = "beacon-individual-v2.0.0"
	SchemaRuns              = "beacon-run-v2.0.0"
	SchemaAnalyses          = "beacon-analysis-v2.0.0"
	SchemaFilteringTerms    = "beacon-filtering-terms-v2.0.0"
)

var schemaTags = map[string]string{
	CollectionVariants:       SchemaGenomicVariations,
	CollectionBiosamples:     SchemaBiosamples,
	CollectionIndividuals:    SchemaIndividuals,
	CollectionRuns:           SchemaRuns,
	CollectionAnalyses:       SchemaAnalyses,
	CollectionFilteringTerms: SchemaFilteringTerms,
}

// SchemaTag returns the default schema tag of collection, or "" if unknown.
func SchemaTag(collection string) string {
	return schemaTags[collection]
}
