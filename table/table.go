// Package table reads and writes the CSV tables exchanged between pipeline stages.
//
// Columns are matched by header name, so extra columns are ignored and order is free.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/meenmo/hedgeassign/credit"
	"github.com/meenmo/hedgeassign/hedge"
	"github.com/meenmo/hedgeassign/utils"
)

// Column headers.
const (
	ColID           = "ID"
	ColType         = "Type"
	ColPrincipal    = "Principal"
	ColMaturity     = "Maturity"
	ColCreditSpread = "Credit_Spread"
	ColDeltaFV      = "Delta_FV"
	ColSwap         = "Swap"
	ColUniqueIndex  = "UNIQUE_INDEX"
	ColCreditID     = "Credit_ID"
)

// DroppedLabel marks a credit that belongs to no swap.
const DroppedLabel = "Dropped"

var (
	CreditHeader  = []string{ColID, ColType, ColPrincipal, ColMaturity, ColCreditSpread, ColDeltaFV}
	LabeledHeader = append(append([]string(nil), CreditHeader...), ColSwap, ColUniqueIndex)
	SwapHeader    = []string{ColSwap, ColPrincipal, ColDeltaFV, ColMaturity}
)

// WriteCredits writes a credit portfolio.
func WriteCredits(w io.Writer, credits []credit.Credit) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CreditHeader); err != nil {
		return fmt.Errorf("WriteCredits: %w", err)
	}
	for _, c := range credits {
		if err := cw.Write(creditRecord(c)); err != nil {
			return fmt.Errorf("WriteCredits: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCredits reads a credit portfolio.
func ReadCredits(r io.Reader) ([]credit.Credit, error) {
	rows, err := readRows(r, CreditHeader)
	if err != nil {
		return nil, fmt.Errorf("ReadCredits: %w", err)
	}
	out := make([]credit.Credit, 0, len(rows))
	for _, row := range rows {
		c, err := parseCredit(row)
		if err != nil {
			return nil, fmt.Errorf("ReadCredits: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}

// WriteLabeled writes the labeled credit table; dropped credits carry "Dropped" in Swap.
func WriteLabeled(w io.Writer, labeled []hedge.LabeledCredit) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(LabeledHeader); err != nil {
		return fmt.Errorf("WriteLabeled: %w", err)
	}
	for _, c := range labeled {
		rec := append(creditRecord(c.Credit), c.SwapLabel(), strconv.Itoa(c.UniqueIndex))
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("WriteLabeled: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadLabeled reads the labeled credit table.
func ReadLabeled(r io.Reader) ([]hedge.LabeledCredit, error) {
	rows, err := readRows(r, LabeledHeader)
	if err != nil {
		return nil, fmt.Errorf("ReadLabeled: %w", err)
	}
	out := make([]hedge.LabeledCredit, 0, len(rows))
	for _, row := range rows {
		c, err := parseCredit(row)
		if err != nil {
			return nil, fmt.Errorf("ReadLabeled: %w", err)
		}
		lc := hedge.LabeledCredit{Credit: c, Swap: hedge.Dropped}
		if row.get(ColSwap) != DroppedLabel {
			if lc.Swap, err = row.int(ColSwap); err != nil {
				return nil, fmt.Errorf("ReadLabeled: %w", err)
			}
			if lc.Swap == hedge.Dropped {
				return nil, fmt.Errorf("ReadLabeled: line %d: swap id 0 is reserved", row.line)
			}
		}
		if lc.UniqueIndex, err = row.int(ColUniqueIndex); err != nil {
			return nil, fmt.Errorf("ReadLabeled: %w", err)
		}
		out = append(out, lc)
	}
	return out, nil
}

// WriteSwaps writes swap targets.
func WriteSwaps(w io.Writer, swaps []hedge.SwapTarget) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SwapHeader); err != nil {
		return fmt.Errorf("WriteSwaps: %w", err)
	}
	for _, s := range swaps {
		rec := []string{
			strconv.Itoa(s.ID),
			utils.FormatPlain(s.Principal),
			utils.FormatPlain(s.DeltaFV),
			utils.FormatPlain(s.Maturity),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("WriteSwaps: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadSwaps reads swap targets.
func ReadSwaps(r io.Reader) ([]hedge.SwapTarget, error) {
	rows, err := readRows(r, SwapHeader)
	if err != nil {
		return nil, fmt.Errorf("ReadSwaps: %w", err)
	}
	out := make([]hedge.SwapTarget, 0, len(rows))
	for _, row := range rows {
		var s hedge.SwapTarget
		if s.ID, err = row.int(ColSwap); err != nil {
			return nil, fmt.Errorf("ReadSwaps: %w", err)
		}
		if s.Principal, err = row.float(ColPrincipal); err != nil {
			return nil, fmt.Errorf("ReadSwaps: %w", err)
		}
		if s.DeltaFV, err = row.float(ColDeltaFV); err != nil {
			return nil, fmt.Errorf("ReadSwaps: %w", err)
		}
		if s.Maturity, err = row.float(ColMaturity); err != nil {
			return nil, fmt.Errorf("ReadSwaps: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}

// WriteAssignment writes the 0/1 matrix, one row per credit and one
// Credits_Assigned_Swap_<id> column per swap.
func WriteAssignment(w io.Writer, a hedge.Assignment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{ColCreditID}, a.Columns()...)); err != nil {
		return fmt.Errorf("WriteAssignment: %w", err)
	}
	swapIDs := a.SwapIDs()
	for _, cid := range a.CreditIDs() {
		rec := make([]string, 0, len(swapIDs)+1)
		rec = append(rec, strconv.Itoa(cid))
		for _, sid := range swapIDs {
			if a.Get(cid, sid) {
				rec = append(rec, "1")
			} else {
				rec = append(rec, "0")
			}
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("WriteAssignment: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadAssignment reads a matrix written by WriteAssignment. Cells must be 0 or 1.
// Rows are keyed by Credit_ID, the credit ID column of the other tables.
func ReadAssignment(r io.Reader) (hedge.Assignment, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return hedge.Assignment{}, fmt.Errorf("ReadAssignment: header: %w", err)
	}
	if len(header) == 0 || strings.TrimSpace(header[0]) != ColCreditID {
		return hedge.Assignment{}, fmt.Errorf("ReadAssignment: first column must be %s", ColCreditID)
	}
	swapIDs := make([]int, 0, len(header)-1)
	for _, name := range header[1:] {
		id, ok := hedge.ParseColumnName(strings.TrimSpace(name))
		if !ok {
			return hedge.Assignment{}, fmt.Errorf("ReadAssignment: unexpected column %q", name)
		}
		swapIDs = append(swapIDs, id)
	}

	records, err := cr.ReadAll()
	if err != nil {
		return hedge.Assignment{}, fmt.Errorf("ReadAssignment: %w", err)
	}
	creditIDs := make([]int, len(records))
	for i, rec := range records {
		if creditIDs[i], err = strconv.Atoi(strings.TrimSpace(rec[0])); err != nil {
			return hedge.Assignment{}, fmt.Errorf("ReadAssignment: line %d: %s: %w", i+2, ColCreditID, err)
		}
	}

	a, err := hedge.NewAssignment(creditIDs, swapIDs)
	if err != nil {
		return hedge.Assignment{}, fmt.Errorf("ReadAssignment: %w", err)
	}
	for i, rec := range records {
		for j, cell := range rec[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil || (v != 0 && v != 1) {
				return hedge.Assignment{}, fmt.Errorf("ReadAssignment: line %d: %s: %q is not 0 or 1", i+2, header[j+1], cell)
			}
			if v == 1 {
				if err := a.Set(creditIDs[i], swapIDs[j], true); err != nil {
					return hedge.Assignment{}, fmt.Errorf("ReadAssignment: %w", err)
				}
			}
		}
	}
	return a, nil
}

// ReadFile opens path and decodes it with read.
func ReadFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer f.Close()
	return read(f)
}

// WriteFile creates path and encodes v into it with write.
func WriteFile[T any](path string, v T, write func(io.Writer, T) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func creditRecord(c credit.Credit) []string {
	return []string{
		strconv.Itoa(c.ID),
		c.Type,
		utils.FormatPlain(c.Principal),
		strconv.Itoa(c.Maturity),
		utils.FormatPlain(c.CreditSpread),
		utils.FormatPlain(c.DeltaFV),
	}
}

func parseCredit(r row) (credit.Credit, error) {
	var (
		c   credit.Credit
		err error
	)
	if c.ID, err = r.int(ColID); err != nil {
		return c, err
	}
	c.Type = r.get(ColType)
	if c.Principal, err = r.float(ColPrincipal); err != nil {
		return c, err
	}
	if c.Maturity, err = r.int(ColMaturity); err != nil {
		return c, err
	}
	if c.CreditSpread, err = r.float(ColCreditSpread); err != nil {
		return c, err
	}
	if c.DeltaFV, err = r.float(ColDeltaFV); err != nil {
		return c, err
	}
	return c, nil
}

type row struct {
	line   int
	fields []string
	index  map[string]int
}

func (r row) get(col string) string {
	return strings.TrimSpace(r.fields[r.index[col]])
}

func (r row) int(col string) (int, error) {
	v, err := strconv.Atoi(r.get(col))
	if err != nil {
		return 0, fmt.Errorf("line %d: %s: %w", r.line, col, err)
	}
	return v, nil
}

func (r row) float(col string) (float64, error) {
	v, err := strconv.ParseFloat(r.get(col), 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: %s: %w", r.line, col, err)
	}
	return v, nil
}

func readRows(r io.Reader, required []string) ([]row, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("missing header")
	}
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	var missing []string
	for _, col := range required {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns %s", strings.Join(missing, ", "))
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	rows := make([]row, len(records))
	for i, rec := range records {
		rows[i] = row{line: i + 2, fields: rec, index: index}
	}
	return rows, nil
}
