package loop

import (
	"context"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
)

// proposalDoc is the on-disk form the upstream rules/AI layer drops.
type proposalDoc struct {
	Symbol     string          `json:"symbol"`
	Side       string          `json:"side"`
	SizePct    decimal.Decimal `json:"sizePct"`
	Tier       string          `json:"tier"`
	Conviction float64         `json:"conviction"`
	Notes      string          `json:"notes"`
}

// FileSource reads the cycle's proposals from a drop file written by
// the upstream layer. The file is renamed after a successful read so
// each batch is consumed exactly once; a missing file is an idle cycle.
type FileSource struct {
	Path string
}

func (s *FileSource) Proposals(_ context.Context, _ schema.PortfolioSnapshot) ([]schema.TradeProposal, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read proposals")
	}

	var docs []proposalDoc
	if err := sonic.ConfigStd.Unmarshal(data, &docs); err != nil {
		return nil, errors.Wrap(err, "parse proposals")
	}

	out := make([]schema.TradeProposal, 0, len(docs))
	for _, d := range docs {
		p, perr := d.toProposal()
		if perr != nil {
			logs.Warnf("skipping malformed proposal for %q: %v", d.Symbol, perr)
			continue
		}
		out = append(out, p)
	}

	if err := os.Rename(s.Path, s.Path+".consumed"); err != nil {
		return nil, errors.Wrap(err, "mark proposals consumed")
	}
	return out, nil
}

func (d proposalDoc) toProposal() (schema.TradeProposal, error) {
	if d.Symbol == "" {
		return schema.TradeProposal{}, errors.New("missing symbol")
	}
	var side schema.Side
	switch d.Side {
	case "buy":
		side = schema.SideBuy
	case "sell":
		side = schema.SideSell
	default:
		return schema.TradeProposal{}, errors.New("unknown side: " + d.Side)
	}
	var tier schema.Tier
	switch d.Tier {
	case "core":
		tier = schema.TierCore
	case "satellite":
		tier = schema.TierSatellite
	case "speculative", "":
		tier = schema.TierSpeculative
	default:
		return schema.TradeProposal{}, errors.New("unknown tier: " + d.Tier)
	}
	return schema.TradeProposal{
		Symbol:     d.Symbol,
		Side:       side,
		SizePct:    d.SizePct,
		Tier:       tier,
		Conviction: d.Conviction,
		Notes:      d.Notes,
		CreatedAt:  time.Now().UTC(),
	}, nil
}
