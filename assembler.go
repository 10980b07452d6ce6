package csf

import (
	"fmt"

	csferrors "github.com/tamirms/csf/errors"
	"github.com/tamirms/csf/internal/bits"
)

// assemble concatenates chunk solutions in chunk order and derives the
// packed offset/seed table, which has one entry more than there are
// chunks so the variable count of chunk q is offset[q+1]-offset[q].
func assemble(results []chunkSolution) (data *bits.Vector, table []offsetSeed, err error) {
	var total uint64
	for _, r := range results {
		total += r.numVariables
	}
	if total > maxVariables {
		return nil, nil, fmt.Errorf("%w: %d variables", csferrors.ErrTooManyKeys, total)
	}

	data = bits.NewVector(total)
	table = make([]offsetSeed, len(results)+1)
	for q, r := range results {
		table[q] = packOffsetSeed(data.Len(), r.seed)
		data.Append(r.bits, r.numVariables)
	}
	table[len(results)] = packOffsetSeed(data.Len(), 0)
	return data, table, nil
}
