package mapping

// Request parameter keys accepted by the genomic variation endpoints.
const (
	KeyAssemblyID       = "assemblyId"
	KeyChromosome       = "Chromosome"
	KeyStart            = "start"
	KeyEnd              = "end"
	KeyReferenceBases   = "referenceBases"
	KeyAlternateBases   = "alternateBases"
	KeyVariantType      = "variantType"
	KeyVariantMinLength = "variantMinLength"
	KeyVariantMaxLength = "variantMaxLength"
	KeyMateName         = "mateName"
	KeyGene             = "gene"
	KeyAminoacidChange  = "aachange"
)

// VariantFilterableKeys lists every request parameter key of the variant endpoints.
var VariantFilterableKeys = []string{
	KeyAssemblyID,
	KeyChromosome,
	KeyStart,
	KeyEnd,
	KeyReferenceBases,
	KeyAlternateBases,
	KeyVariantType,
	KeyVariantMinLength,
	KeyVariantMaxLength,
	KeyMateName,
	KeyGene,
	KeyAminoacidChange,
}

// Variants maps variant request parameters onto genomicVariations paths.
var Variants = MustNew([]Entry{
	{Key: KeyAssemblyID, Path: "_position.assemblyId", Kind: Equality},
	{Key: KeyChromosome, Path: "_position.refseqId", Kind: Equality},
	{Key: KeyStart, Path: "_position.start", Kind: RangeFrom},
	{Key: KeyEnd, Path: "_position.end", Kind: RangeTo},
	{Key: KeyReferenceBases, Path: "variation.referenceBases", Kind: Equality},
	{Key: KeyAlternateBases, Path: "variation.alternateBases", Kind: Equality},
	{Key: KeyVariantType, Path: "variation.variantType", Kind: Equality},
	{Key: KeyVariantMinLength, Kind: Reserved},
	{Key: KeyVariantMaxLength, Kind: Reserved},
	{Key: KeyMateName, Kind: Reserved},
	{Key: KeyGene, Path: "molecularAttributes.geneIds", Kind: Equality},
	{Key: KeyAminoacidChange, Path: "molecularAttributes.aminoacidChanges", Kind: Equality},
}, VariantFilterableKeys)
