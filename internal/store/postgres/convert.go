package postgres

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

func keyBytes(keys []domain.Pubkey) [][]byte {
	out := make([][]byte, len(keys))
	for i := range keys {
		out[i] = keys[i][:]
	}
	return out
}

func toPubkey(b []byte) (domain.Pubkey, error) {
	return domain.PubkeyFromBytes(b)
}

// pageClause appends the time window, ordering and pagination from opts to
// query. column is the timestamp column filtered by Since/Until.
func pageClause(query string, args []any, column, order string, opts domain.ListOpts) (string, []any) {
	var b strings.Builder
	b.WriteString(query)
	argIdx := len(args) + 1

	if opts.Since != nil {
		fmt.Fprintf(&b, " AND %s >= $%d", column, argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		fmt.Fprintf(&b, " AND %s <= $%d", column, argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	b.WriteString(" ORDER BY " + order)

	if opts.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return b.String(), args
}
