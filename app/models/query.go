package models

import (
	"time"

	"github.com/google/uuid"
)

// QueryState is the lifecycle state of a query.
type QueryState string

const (
	QueryStateUnknown   QueryState = "UNKNOWN"
	QueryStateAccepted  QueryState = "ACCEPTED"
	QueryStateScheduled QueryState = "SCHEDULED"
	QueryStateRunning   QueryState = "RUNNING"
	QueryStateFinished  QueryState = "FINISHED"
	QueryStateCanceled  QueryState = "CANCELED"
	QueryStateFailed    QueryState = "FAILED"
)

// Terminal reports whether no further transitions happen from s.
func (s QueryState) Terminal() bool {
	switch s {
	case QueryStateFinished, QueryStateCanceled, QueryStateFailed:
		return true
	}
	return false
}

// Query is a persisted query submission.
type Query struct {
	ID             uuid.UUID  `gorm:"size:36;primaryKey"`
	CatalogName    string     `gorm:"size:255;not null;index"`
	EngineName     string     `gorm:"size:255;not null"`
	EngineVersion  string     `gorm:"size:50;not null"`
	SubmittedQuery string     `gorm:"type:text;not null"`
	ExecutedQuery  *string    `gorm:"type:text"`
	Scheduled      *time.Time
	Started        *time.Time
	Finished       *time.Time
	State          QueryState `gorm:"size:20;not null;default:UNKNOWN"`
	Progress       float64    `gorm:"not null;default:0"`
	Async          bool       `gorm:"column:async_;not null;default:false"`
	Errors         []string   `gorm:"type:text;serializer:json"`
}

// QueryCreate is the body of POST /queries/.
type QueryCreate struct {
	CatalogName    string `json:"catalog_name"    msgpack:"catalog_name"    validate:"required"`
	EngineName     string `json:"engine_name"     msgpack:"engine_name"     validate:"required"`
	EngineVersion  string `json:"engine_version"  msgpack:"engine_version"  validate:"required"`
	SubmittedQuery string `json:"submitted_query" msgpack:"submitted_query" validate:"required"`
	Async          bool   `json:"async_"          msgpack:"async_"`
}

// QueryWithResults is the API representation of a query.
type QueryWithResults struct {
	ID             string     `json:"id"`
	CatalogName    string     `json:"catalog_name"`
	EngineName     string     `json:"engine_name"`
	EngineVersion  string     `json:"engine_version"`
	SubmittedQuery string     `json:"submitted_query"`
	ExecutedQuery  *string    `json:"executed_query"`
	Scheduled      *NaiveTime `json:"scheduled"`
	Started        *NaiveTime `json:"started"`
	Finished       *NaiveTime `json:"finished"`
	State          QueryState `json:"state"`
	Progress       float64    `json:"progress"`
	Async          bool       `json:"async_"`
	Results        Results    `json:"results"`
	Errors         []string   `json:"errors"`
}

// WithResults builds the API view of q. Nil results and errors render as
// empty lists.
func (q Query) WithResults(results Results) QueryWithResults {
	if results == nil {
		results = Results{}
	}
	errs := q.Errors
	if errs == nil {
		errs = []string{}
	}
	return QueryWithResults{
		ID:             q.ID.String(),
		CatalogName:    q.CatalogName,
		EngineName:     q.EngineName,
		EngineVersion:  q.EngineVersion,
		SubmittedQuery: q.SubmittedQuery,
		ExecutedQuery:  q.ExecutedQuery,
		Scheduled:      naive(q.Scheduled),
		Started:        naive(q.Started),
		Finished:       naive(q.Finished),
		State:          q.State,
		Progress:       q.Progress,
		Async:          q.Async,
		Results:        results,
		Errors:         errs,
	}
}
