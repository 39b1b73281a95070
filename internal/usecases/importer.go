package usecases

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"go.openly.dev/pointy"

	"github.com/sand/fraud-detector/backend/internal/entities"
	fraudentities "github.com/sand/fraud-detector/backend/internal/fraud/entities"
)

var requiredColumns = []string{"transaction_id", "user_id", "amount", "currency", "timestamp"}

// RowError describes a CSV row that could not be imported. Row is 1-based and
// does not count the header.
type RowError struct {
	Row     int               `json:"row"`
	Message string            `json:"message"`
	Data    map[string]string `json:"data"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// parseTransactionsCSV reads a header-led CSV stream. Valid rows become
// transactions; invalid ones are returned as RowErrors. Only a malformed
// stream or a missing required column fails the whole parse.
func parseTransactionsCSV(r io.Reader) ([]entities.Transaction, []RowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("%w: empty file", fraudentities.ErrValidation)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	colMap := make(map[string]int, len(header))
	for i, h := range header {
		colMap[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := colMap[col]; !ok {
			return nil, nil, fmt.Errorf("%w: missing column %q", fraudentities.ErrValidation, col)
		}
	}

	var (
		transactions []entities.Transaction
		rowErrors    []RowError
	)

	for idx := 1; ; idx++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				rowErrors = append(rowErrors, RowError{Row: idx, Message: parseErr.Err.Error()})
				continue
			}
			return nil, nil, fmt.Errorf("failed to read csv: %w", err)
		}

		row := make(map[string]string, len(colMap))
		for name, i := range colMap {
			if i < len(record) {
				row[name] = strings.TrimSpace(record[i])
			}
		}

		t, msg := transactionFromRow(row)
		if msg != "" {
			rowErrors = append(rowErrors, RowError{Row: idx, Message: msg, Data: row})
			continue
		}
		transactions = append(transactions, t)
	}

	return transactions, rowErrors, nil
}

func transactionFromRow(row map[string]string) (entities.Transaction, string) {
	for _, field := range requiredColumns {
		if row[field] == "" {
			return entities.Transaction{}, "Missing required field: " + field
		}
	}

	id, err := strconv.ParseInt(row["transaction_id"], 10, 64)
	if err != nil {
		return entities.Transaction{}, "Invalid transaction_id value: " + row["transaction_id"]
	}
	userID, err := strconv.ParseInt(row["user_id"], 10, 64)
	if err != nil {
		return entities.Transaction{}, "Invalid user_id value: " + row["user_id"]
	}
	amount, err := strconv.ParseFloat(row["amount"], 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return entities.Transaction{}, "Invalid amount value: " + row["amount"]
	}
	ts, err := time.ParseInLocation(entities.DateLayout, row["timestamp"], time.UTC)
	if err != nil {
		return entities.Transaction{}, fmt.Sprintf("Invalid timestamp format: %s (expected YYYY-MM-DD HH:MM:SS)", row["timestamp"])
	}

	t := entities.Transaction{
		ID:        id,
		UserID:    userID,
		Amount:    amount,
		Currency:  row["currency"],
		Timestamp: ts,
		Reason:    row["reason"],
	}
	if country := row["country"]; country != "" {
		t.Country = pointy.String(country)
	}
	if v := row["is_suspicious"]; v != "" {
		flag, err := strconv.ParseBool(v)
		if err != nil {
			return entities.Transaction{}, "Invalid is_suspicious value: " + v
		}
		t.IsSuspicious = flag
	}

	return t, ""
}
