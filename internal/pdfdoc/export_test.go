package pdfdoc

// BuildPDF exposes the fixture builder to the external test package.
var BuildPDF = buildPDF
