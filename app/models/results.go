package models

import "strings"

// ColumnType is the logical type of a result column.
type ColumnType string

const (
	ColumnTypeBytes     ColumnType = "BYTES"
	ColumnTypeStr       ColumnType = "STR"
	ColumnTypeFloat     ColumnType = "FLOAT"
	ColumnTypeInt       ColumnType = "INT"
	ColumnTypeDecimal   ColumnType = "DECIMAL"
	ColumnTypeBool      ColumnType = "BOOL"
	ColumnTypeDatetime  ColumnType = "DATETIME"
	ColumnTypeDate      ColumnType = "DATE"
	ColumnTypeTime      ColumnType = "TIME"
	ColumnTypeTimedelta ColumnType = "TIMEDELTA"
	ColumnTypeList      ColumnType = "LIST"
	ColumnTypeDict      ColumnType = "DICT"
)

// ColumnTypeFromDatabase maps a driver's DatabaseTypeName to a ColumnType.
// Empty or unrecognised names map to STR.
func ColumnTypeFromDatabase(name string) ColumnType {
	name = strings.ToUpper(strings.TrimSpace(name))
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}

	switch name {
	case "BLOB", "BYTEA", "BINARY", "VARBINARY", "IMAGE", "LONGBLOB", "MEDIUMBLOB", "TINYBLOB":
		return ColumnTypeBytes
	case "INT", "INTEGER", "INT2", "INT4", "INT8", "BIGINT", "SMALLINT", "TINYINT", "MEDIUMINT",
		"SERIAL", "BIGSERIAL", "UNSIGNED INT", "UNSIGNED BIGINT":
		return ColumnTypeInt
	case "REAL", "FLOAT", "FLOAT4", "FLOAT8", "DOUBLE", "DOUBLE PRECISION":
		return ColumnTypeFloat
	case "DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY":
		return ColumnTypeDecimal
	case "BOOL", "BOOLEAN", "BIT":
		return ColumnTypeBool
	case "DATETIME", "DATETIME2", "TIMESTAMP", "TIMESTAMPTZ", "SMALLDATETIME", "DATETIMEOFFSET":
		return ColumnTypeDatetime
	case "DATE":
		return ColumnTypeDate
	case "TIME", "TIMETZ":
		return ColumnTypeTime
	case "INTERVAL":
		return ColumnTypeTimedelta
	case "JSON", "JSONB":
		return ColumnTypeDict
	}
	if strings.HasPrefix(name, "_") || strings.HasSuffix(name, "[]") {
		return ColumnTypeList
	}
	return ColumnTypeStr
}

// ColumnMetadata describes one result column.
type ColumnMetadata struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// StatementResults holds the output of a single SQL statement.
type StatementResults struct {
	SQL      string           `json:"sql"`
	Columns  []ColumnMetadata `json:"columns"`
	Rows     [][]any          `json:"rows"`
	RowCount int              `json:"row_count"`
}

// Results is the ordered output of every statement in a query.
type Results []StatementResults
