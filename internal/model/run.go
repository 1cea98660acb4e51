package model

import "time"

// RunStatus represents the state of a sweep run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one execution of the accuracy sweep.
type Run struct {
	ID        string    `json:"id"`
	Method    string    `json:"method"`
	Selection PeriodKey `json:"selection"`
	Status    RunStatus `json:"status"`
	AUC       float64   `json:"auc"`
	Best      *int      `json:"best,omitempty"` // index of the Youden-optimal combination
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConfusionCounts accumulates TP/FP/FN/TN for one parameter combination.
type ConfusionCounts struct {
	TP int64 `json:"tp" yaml:"tp"`
	FP int64 `json:"fp" yaml:"fp"`
	FN int64 `json:"fn" yaml:"fn"`
	TN int64 `json:"tn" yaml:"tn"`
}

// TPR returns TP/(TP+FN), or 0 when the denominator is 0.
func (c ConfusionCounts) TPR() float64 {
	if c.TP+c.FN == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FN)
}

// FPR returns FP/(FP+TN), or 0 when the denominator is 0.
func (c ConfusionCounts) FPR() float64 {
	if c.FP+c.TN == 0 {
		return 0
	}
	return float64(c.FP) / float64(c.FP+c.TN)
}

// CombinationResult is one evaluated point of the sweep.
type CombinationResult struct {
	Index  int             `json:"index" yaml:"index"`
	Params Params          `json:"params" yaml:"params"`
	Counts ConfusionCounts `json:"counts" yaml:"counts"`
	TPR    float64         `json:"tpr" yaml:"tpr"`
	FPR    float64         `json:"fpr" yaml:"fpr"`
}

// Youden returns TPR - FPR.
func (r CombinationResult) Youden() float64 { return r.TPR - r.FPR }

// ROCPoint is one (FPR, TPR) point of the sweep curve.
type ROCPoint struct {
	FPR float64 `json:"fpr" yaml:"fpr"`
	TPR float64 `json:"tpr" yaml:"tpr"`
}

// Point returns the ROC point of the combination.
func (r CombinationResult) Point() ROCPoint { return ROCPoint{FPR: r.FPR, TPR: r.TPR} }
