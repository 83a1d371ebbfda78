// Package model contains the research domain types shared by every service
// layer: the clarified Brief, the kanban Task that tracks it, retrieved
// Findings, EvidenceClusters and the final ReportDocument.
//
// Types in this package carry no behaviour beyond validation, cloning and
// ordering helpers, so that storage backends can persist them as plain JSON.
package model
