package solana

import (
	"context"
	"fmt"
	"time"
)

// Activity is one transaction that touched the sale program.
type Activity struct {
	Signature    string    `json:"signature"`
	Slot         int64     `json:"slot"`
	BlockTime    time.Time `json:"block_time"`
	Failed       bool      `json:"failed"`
	Instructions []string  `json:"instructions"`
}

// Recent returns up to limit of the newest transactions mentioning the
// program, newest first, with the sale instructions each one executed.
// Signatures whose transaction the node no longer serves are skipped.
func (r *SaleReader) Recent(ctx context.Context, limit int) ([]Activity, error) {
	program := r.addrs.Program.String()

	sigs, err := r.rpc.GetSignaturesForAddress(ctx, program, &SignaturesOpts{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("signatures for %s: %w", program, err)
	}

	out := make([]Activity, 0, len(sigs))
	for _, sig := range sigs {
		tx, err := r.rpc.GetTransaction(ctx, sig.Signature)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", sig.Signature, err)
		}
		if tx == nil {
			continue
		}

		a := Activity{
			Signature:    sig.Signature,
			Slot:         tx.Slot,
			Failed:       sig.Err != nil,
			Instructions: []string{},
		}
		if tx.BlockTime > 0 {
			a.BlockTime = time.Unix(tx.BlockTime, 0).UTC()
		}
		if tx.Meta != nil {
			a.Failed = a.Failed || tx.Meta.Err != nil
			for _, ins := range InstructionsOf(program, ParseInstructions(tx.Meta.LogMessages)) {
				a.Instructions = append(a.Instructions, ins.Name)
			}
		}
		out = append(out, a)
	}
	return out, nil
}
