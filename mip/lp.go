package mip

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/meenmo/hedgeassign/utils"
)

// termsPerLine keeps LP rows well under the 255-character line limit some readers enforce.
const termsPerLine = 6

// WriteLP writes the model in CPLEX LP text format.
func (m *Model) WriteLP(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "\\* %s *\\\n", m.name)
	fmt.Fprintln(bw, "Minimize")
	fmt.Fprintf(bw, "OBJ: %s\n", m.formatTerms(m.objective))

	fmt.Fprintln(bw, "Subject To")
	for _, c := range m.constraints {
		fmt.Fprintf(bw, "%s: %s %s %s\n", c.Name, m.formatTerms(c.Terms), c.Sense, utils.FormatPlain(c.RHS))
	}

	var bounded, binaries []Var
	for _, v := range m.vars {
		switch {
		case v.Kind == Binary:
			binaries = append(binaries, v)
		case v.Lower != 0 || !math.IsInf(v.Upper, 1):
			bounded = append(bounded, v)
		}
	}
	if len(bounded) > 0 {
		fmt.Fprintln(bw, "Bounds")
		for _, v := range bounded {
			fmt.Fprintf(bw, "%s\n", formatBound(v))
		}
	}
	if len(binaries) > 0 {
		fmt.Fprintln(bw, "Binaries")
		for _, v := range binaries {
			fmt.Fprintln(bw, v.Name)
		}
	}
	fmt.Fprintln(bw, "End")

	return bw.Flush()
}

// ExportLP writes the model to dir/output_model_<experiment>.lp and returns the path.
func (m *Model) ExportLP(dir, experiment string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ExportLP: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("output_model_%s.lp", experiment))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("ExportLP: %w", err)
	}
	if err := m.WriteLP(f); err != nil {
		f.Close()
		return "", fmt.Errorf("ExportLP: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("ExportLP: %w", err)
	}
	return path, nil
}

func (m *Model) formatTerms(terms []Term) string {
	if len(terms) == 0 {
		// LP readers reject an empty left-hand side.
		return "0 " + m.vars[m.delta].Name
	}
	var sb strings.Builder
	for k, t := range terms {
		if k > 0 && k%termsPerLine == 0 {
			sb.WriteString("\n ")
		}
		sign := "+"
		if t.Coef < 0 {
			sign = "-"
		}
		if k == 0 {
			if sign == "-" {
				sb.WriteString("- ")
			}
		} else {
			sb.WriteString(" " + sign + " ")
		}
		sb.WriteString(utils.FormatPlain(math.Abs(t.Coef)))
		sb.WriteString(" ")
		sb.WriteString(m.vars[t.Var].Name)
	}
	return sb.String()
}

func formatBound(v Var) string {
	switch {
	case math.IsInf(v.Lower, -1) && math.IsInf(v.Upper, 1):
		return v.Name + " free"
	case math.IsInf(v.Upper, 1):
		return fmt.Sprintf("%s >= %s", v.Name, utils.FormatPlain(v.Lower))
	case math.IsInf(v.Lower, -1):
		return fmt.Sprintf("-inf <= %s <= %s", v.Name, utils.FormatPlain(v.Upper))
	default:
		return fmt.Sprintf("%s <= %s <= %s", utils.FormatPlain(v.Lower), v.Name, utils.FormatPlain(v.Upper))
	}
}
