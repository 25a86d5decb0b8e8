// Package printing holds the page-setup value objects used when a report is
// rasterised to PDF: paper size, orientation and margins.
package printing
