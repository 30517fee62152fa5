package sampler

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	ndimKey   = "fNdim="
	nfixedKey = "fNfixed="
	cellKey   = "cell"

	// unknownAlpha marks a record saved without adapted probabilities.
	unknownAlpha = "*"

	maxLineBytes = 16 * 1024 * 1024
)

// formatFloat writes the shortest representation that parses back exactly.
func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}

// WriteState encodes the sampler: the fNdim/fNfixed header followed by one
// record per leaf with its path, prior, alpha, statistics and the lower-half
// statistics of every adaptable dimension. When includeAdaptedWeights is
// false alpha is written as "*" and recomputed from the statistics on restore.
func (s *Sampler) WriteState(w io.Writer, includeAdaptedWeights bool) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s%d\n%s%d\n", ndimKey, s.tree.ndim, nfixedKey, s.tree.nfixed)
	fmt.Fprintf(bw, "# %s path prior alpha n Σf Σf² Σwf Σ(wf)² [lower half: n Σf Σf² Σwf Σ(wf)²] x %d\n",
		cellKey, s.tree.nadapt())

	var line strings.Builder
	for _, l := range s.tree.leaves() {
		line.Reset()
		line.WriteString(cellKey)
		line.WriteByte(' ')
		line.WriteString(l.PathString())
		line.WriteByte(' ')
		line.WriteString(formatFloat(l.prior))
		line.WriteByte(' ')
		if includeAdaptedWeights {
			line.WriteString(formatFloat(l.alpha))
		} else {
			line.WriteString(unknownAlpha)
		}
		writeStats(&line, l.stats)
		for _, h := range l.halves {
			writeStats(&line, h)
		}
		line.WriteByte('\n')
		if _, err := bw.WriteString(line.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeStats(b *strings.Builder, st Stats) {
	for _, x := range []float64{st.N, st.SumF, st.SumF2, st.SumWF, st.SumW2F2} {
		b.WriteByte(' ')
		b.WriteString(formatFloat(x))
	}
}

// SaveState writes the sampler state to path, replacing any existing file.
func (s *Sampler) SaveState(path string, includeAdaptedWeights bool) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("saving state %s: %w", path, closeErr)
		}
	}()
	if err := s.WriteState(file, includeAdaptedWeights); err != nil {
		return fmt.Errorf("saving state %s: %w", path, err)
	}
	logrus.Debugf("sampler: saved %d cells to %s", s.Ncells(), path)
	return nil
}

// parsedState is a tree decoded from a state file.
type parsedState struct {
	tree       *tree
	alphaKnown bool
}

// ReadStateHeader returns the (Ndim, Nfixed) header of a state file.
func ReadStateHeader(path string) (ndim, nfixed int, err error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("reading state header: %w", err)
	}
	defer func() { _ = file.Close() }()

	scanner := newStateScanner(file)
	ndim, nfixed, err = scanHeader(scanner)
	if err != nil {
		return 0, 0, fmt.Errorf("state %s: %w", path, err)
	}
	return ndim, nfixed, nil
}

func newStateScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	return scanner
}

// nextLine returns the next non-blank, non-comment line.
func nextLine(scanner *bufio.Scanner) (string, bool) {
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line, true
	}
	return "", false
}

func scanHeader(scanner *bufio.Scanner) (ndim, nfixed int, err error) {
	ndim, err = headerInt(scanner, ndimKey)
	if err != nil {
		return 0, 0, err
	}
	nfixed, err = headerInt(scanner, nfixedKey)
	if err != nil {
		return 0, 0, err
	}
	if !validDims(ndim, nfixed) {
		return 0, 0, fmt.Errorf("%w: header Ndim=%d, Nfixed=%d", ErrMalformedState, ndim, nfixed)
	}
	return ndim, nfixed, nil
}

func headerInt(scanner *bufio.Scanner, key string) (int, error) {
	line, ok := nextLine(scanner)
	if !ok {
		if err := scanner.Err(); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("%w: missing %s header", ErrMalformedState, key)
	}
	text, found := strings.CutPrefix(line, key)
	if !found {
		return 0, fmt.Errorf("%w: expected %s header, got %q", ErrMalformedState, key, line)
	}
	v, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("%w: %s header: %v", ErrMalformedState, key, err)
	}
	return v, nil
}

// readState decodes a state file into a tree, verifying that the recorded
// leaves tile the whole domain with one split axis per internal node.
func readState(r io.Reader) (*parsedState, error) {
	scanner := newStateScanner(r)
	ndim, nfixed, err := scanHeader(scanner)
	if err != nil {
		return nil, err
	}
	t := newTree(ndim, nfixed)
	nadapt := t.nadapt()
	wantFields := 4 + 5*(1+nadapt)

	recorded := make(map[*Cell]bool)
	alphaKnown := true
	record := 0
	for {
		line, ok := nextLine(scanner)
		if !ok {
			break
		}
		record++
		fields := strings.Fields(line)
		if fields[0] != cellKey {
			return nil, fmt.Errorf("%w: record %d: unknown record type %q", ErrMalformedState, record, fields[0])
		}
		if len(fields) != wantFields {
			return nil, fmt.Errorf("%w: record %d: %d fields, want %d", ErrMalformedState, record, len(fields), wantFields)
		}
		leaf, err := t.grow(fields[1], recorded)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrMalformedState, record, err)
		}
		if err := decodeLeaf(leaf, fields[2:], &alphaKnown); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrMalformedState, record, err)
		}
		recorded[leaf] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for _, l := range t.leaves() {
		if !recorded[l] {
			return nil, fmt.Errorf("%w: region %s has no record", ErrMalformedState, l.PathString())
		}
	}
	t.rollup()
	return &parsedState{tree: t, alphaKnown: alphaKnown}, nil
}

// grow descends the path, creating internal nodes as needed, and returns
// the leaf it names.
func (t *tree) grow(path string, recorded map[*Cell]bool) (*Cell, error) {
	c := t.root
	if path != "/" {
		for _, token := range strings.Split(path, ".") {
			step, err := parseStep(token)
			if err != nil {
				return nil, err
			}
			if step.Dim < t.nfixed || step.Dim >= t.ndim {
				return nil, fmt.Errorf("path %s splits non-adaptable dimension %d", path, step.Dim)
			}
			if recorded[c] {
				return nil, fmt.Errorf("path %s descends below recorded leaf %s", path, c.PathString())
			}
			if c.IsLeaf() {
				t.divide(c, step.Dim, 0.5)
			} else if c.axis != step.Dim {
				return nil, fmt.Errorf("path %s splits %s along %d, elsewhere along %d", path, c.PathString(), step.Dim, c.axis)
			}
			if step.Upper {
				c = c.children[1]
			} else {
				c = c.children[0]
			}
		}
	}
	if !c.IsLeaf() || recorded[c] {
		return nil, fmt.Errorf("path %s recorded twice or covers other records", path)
	}
	return c, nil
}

func parseStep(token string) (Step, error) {
	if len(token) < 2 {
		return Step{}, fmt.Errorf("bad path step %q", token)
	}
	sign := token[len(token)-1]
	if sign != '-' && sign != '+' {
		return Step{}, fmt.Errorf("bad path step %q", token)
	}
	dim, err := strconv.Atoi(token[:len(token)-1])
	if err != nil {
		return Step{}, fmt.Errorf("bad path step %q", token)
	}
	return Step{Dim: dim, Upper: sign == '+'}, nil
}

// decodeLeaf fills a leaf from the record fields after the path.
func decodeLeaf(leaf *Cell, fields []string, alphaKnown *bool) error {
	prior, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || !(prior > 0) {
		return fmt.Errorf("prior %q must be a positive number", fields[0])
	}
	leaf.prior = prior
	if fields[1] == unknownAlpha {
		*alphaKnown = false
		leaf.alpha = prior
	} else {
		alpha, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || !(alpha > 0) {
			return fmt.Errorf("alpha %q must be a positive number", fields[1])
		}
		leaf.alpha = alpha
	}

	values := make([]float64, len(fields)-2)
	for i, f := range fields[2:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return fmt.Errorf("statistic %q: %v", f, err)
		}
		values[i] = v
	}
	leaf.stats = statsFrom(values[0:5])
	if leaf.stats.N < 0 {
		return fmt.Errorf("negative sample count %g", leaf.stats.N)
	}
	for k := range leaf.halves {
		leaf.halves[k] = statsFrom(values[5*(k+1) : 5*(k+2)])
	}
	return nil
}

func statsFrom(v []float64) Stats {
	return Stats{N: v[0], SumF: v[1], SumF2: v[2], SumWF: v[3], SumW2F2: v[4]}
}

func readStateFile(path string) (*parsedState, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading state: %w", err)
	}
	defer func() { _ = file.Close() }()
	st, err := readState(file)
	if err != nil {
		return nil, fmt.Errorf("state %s: %w", path, err)
	}
	return st, nil
}

// RestoreState reconstructs a sampler from a state file written by
// SaveState. The file must describe the (ndim, nfixed) domain. Probabilities
// saved as "*" are recomputed from the restored statistics.
func RestoreState(path string, ndim, nfixed int, source RandomSource, config AdaptConfig) (*Sampler, error) {
	st, err := readStateFile(path)
	if err != nil {
		return nil, err
	}
	s, err := fromParsed(st, ndim, nfixed, source, config)
	if err != nil {
		return nil, fmt.Errorf("state %s: %w", path, err)
	}
	logrus.Debugf("sampler: restored %d cells, N=%g from %s", s.Ncells(), s.Nsample(), path)
	return s, nil
}

// RestoreFrom is RestoreState reading from r.
func RestoreFrom(r io.Reader, ndim, nfixed int, source RandomSource, config AdaptConfig) (*Sampler, error) {
	st, err := readState(r)
	if err != nil {
		return nil, err
	}
	return fromParsed(st, ndim, nfixed, source, config)
}

func fromParsed(st *parsedState, ndim, nfixed int, source RandomSource, config AdaptConfig) (*Sampler, error) {
	s, err := New(ndim, nfixed, source, config)
	if err != nil {
		return nil, err
	}
	if st.tree.ndim != ndim || st.tree.nfixed != nfixed {
		return nil, fmt.Errorf("%w: file has Ndim=%d, Nfixed=%d, want Ndim=%d, Nfixed=%d",
			ErrDimensionMismatch, st.tree.ndim, st.tree.nfixed, ndim, nfixed)
	}
	s.tree = st.tree
	if !st.alphaKnown {
		leaves := s.tree.leaves()
		s.allocate(leaves, s.exploration(leaves))
		s.tree.rollup()
	}
	return s, nil
}

// MergeState adds the statistics of another state file over the same
// domain, leaf for leaf. Where the file's tree is finer the local tree is
// split to match; where it is coarser its statistics are apportioned down
// the local tree. Sample counts and sums add exactly, so merging files in
// any order pools them into one estimator.
func (s *Sampler) MergeState(path string) error {
	st, err := readStateFile(path)
	if err != nil {
		return err
	}
	if err := s.merge(st); err != nil {
		return fmt.Errorf("merging state %s: %w", path, err)
	}
	logrus.Debugf("sampler: merged %s, N=%g, %d cells", path, s.Nsample(), s.Ncells())
	return nil
}

// MergeFrom is MergeState reading from r.
func (s *Sampler) MergeFrom(r io.Reader) error {
	st, err := readState(r)
	if err != nil {
		return err
	}
	return s.merge(st)
}

// Merge adds the statistics of another in-memory sampler, as MergeState
// does for a file. other is not modified.
func (s *Sampler) Merge(other *Sampler) error {
	return s.merge(&parsedState{tree: other.tree, alphaKnown: true})
}

func (s *Sampler) merge(st *parsedState) error {
	if st.tree.ndim != s.tree.ndim || st.tree.nfixed != s.tree.nfixed {
		return fmt.Errorf("%w: incoming Ndim=%d, Nfixed=%d, local Ndim=%d, Nfixed=%d",
			ErrDimensionMismatch, st.tree.ndim, st.tree.nfixed, s.tree.ndim, s.tree.nfixed)
	}
	s.last = nil
	splits := s.tree.merge(s.tree.root, st.tree.root)
	s.tree.rollup()
	if splits > 0 {
		logrus.Debugf("sampler: merge refined %d local cells", splits)
	}
	return nil
}

// IsStateError reports whether err came from decoding or matching a state file.
func IsStateError(err error) bool {
	return errors.Is(err, ErrMalformedState) || errors.Is(err, ErrDimensionMismatch)
}
