// Package printing turns imaging reports into PDF files.
//
// This package contains:
// - Composer, which builds the report HTML from patient, branding, images and layout
// - Paginate and RenderImagesSection, which lay images out over pages
// - ChromedpRenderer, which prints HTML to PDF in a fresh headless Chrome per call
// - RetryPolicy, the bounded retry used around each print
// - ArtifactStore and FileSystemStorage for rendered PDFs
//
// Example usage:
//
//	composer := NewComposer()
//	html, err := composer.ComposeHTML(patient, branding, images, layout)
//	if err != nil {
//	    return err
//	}
//
//	renderer := NewChromedpRenderer(NewChromedpLauncher(&ChromedpConfig{Headless: true}), RendererConfig{})
//	result, err := renderer.Render(ctx, &RenderRequest{
//	    HTML:        html,
//	    PaperSize:   printing.PaperSizeA4,
//	    Orientation: layout.Orientation(),
//	})
package printing
