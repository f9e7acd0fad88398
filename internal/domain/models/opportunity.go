package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category identifies the kind of opportunity a classifier detected.
type Category string

const (
	CategoryArbitrage   Category = "arbitrage"
	CategoryLiquidation Category = "liquidation"
	CategorySandwich    Category = "sandwich"
	CategoryFrontrun    Category = "frontrun"
	CategoryBackrun     Category = "backrun"
	CategoryJustInTime  Category = "just_in_time"
	CategoryTimeBandit  Category = "time_bandit"
)

// Categories lists every known category in a stable order.
var Categories = []Category{
	CategoryArbitrage,
	CategoryLiquidation,
	CategorySandwich,
	CategoryFrontrun,
	CategoryBackrun,
	CategoryJustInTime,
	CategoryTimeBandit,
}

// Known reports whether c is one of the registered categories.
func (c Category) Known() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// Opportunity is a classified candidate event awaiting execution by a
// category handler. Immutable after creation; ownership moves classifier ->
// queue -> worker and the value is dropped once the worker finishes.
type Opportunity struct {
	ID             string
	Category       Category
	SourceRecordID string
	EstimatedValue decimal.Decimal
	Cost           decimal.Decimal
	DetectedAt     time.Time
	Details        map[string]string
}

// NetValue is the estimated value after cost.
func (o *Opportunity) NetValue() decimal.Decimal {
	return o.EstimatedValue.Sub(o.Cost)
}

// Candidate is the raw classifier output before an Opportunity is minted.
type Candidate struct {
	Category       Category
	EstimatedValue decimal.Decimal
	Cost           decimal.Decimal
	Details        map[string]string
}

// ArchivedOpportunity is the persisted form of a terminal opportunity.
type ArchivedOpportunity struct {
	ID             string          `json:"id" ch:"id"`
	Category       Category        `json:"category" ch:"category"`
	SourceRecordID string          `json:"source_record_id" ch:"source_record_id"`
	EstimatedValue decimal.Decimal `json:"estimated_value" ch:"estimated_value"`
	Cost           decimal.Decimal `json:"cost" ch:"cost"`
	Profit         decimal.Decimal `json:"profit" ch:"profit"`
	Succeeded      bool            `json:"succeeded" ch:"succeeded"`
	DetectedAt     time.Time       `json:"detected_at" ch:"detected_at"`
	ExecutedAt     time.Time       `json:"executed_at" ch:"executed_at"`
}

// TxRecord is one candidate transaction as fetched from the chain source.
// Fields beyond ID are opaque to the pipeline; only classifiers look inside.
type TxRecord struct {
	ID       string
	Height   int64
	CostHint decimal.Decimal   // fee/gas estimate, zero when unknown
	Venues   []string          // contract/venue addresses touched
	Markers  map[string]string // raw fields the classifier may inspect
}
