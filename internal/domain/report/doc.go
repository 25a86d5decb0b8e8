// Package report contains the imaging report aggregate: the patient snapshot,
// the ordered images, the layout options that drive PDF composition, and the
// saved → generated lifecycle. Every report is owned by one clinic and all
// store operations are scoped by clinic id.
package report
