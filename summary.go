package binkeeper

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/robfig/cron"
)

const SummarySpec = "0 0 */6 * * *"

// StartSummary schedules the status table report. The caller stops the returned cron.
func (k *Keeper) StartSummary(spec string) (*cron.Cron, error) {
	if spec == "" {
		spec = SummarySpec
	}

	c := cron.New()
	if err := c.AddFunc(spec, k.sendSummary); err != nil {
		return nil, fmt.Errorf("invalid summary schedule %q: %w", spec, err)
	}
	c.Start()

	k.lg.Info().Str("spec", spec).Msg("summary scheduled")
	return c, nil
}

func (k *Keeper) sendSummary() {
	k.report(RenderSummary(k.Snapshot()))
}

func RenderSummary(st Status) string {
	tw := table.NewWriter()
	tw.SetTitle("binkeeper")
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Item", "Value"})

	tw.AppendRow(table.Row{"State", st.State})
	if st.Range != nil {
		tw.AppendRow(table.Row{"Range", st.Range.String()})
	}
	if st.ActiveBin != nil {
		tw.AppendRow(table.Row{"Active bin", st.ActiveBin.BinID})
	}
	tw.AppendRow(table.Row{"In range", st.InRange})
	tw.AppendRow(table.Row{"Price", st.Price.StringFixed(6)})
	tw.AppendRow(table.Row{"Balance A", st.BalanceA.String()})
	tw.AppendRow(table.Row{"Balance B", st.BalanceB.String()})
	tw.AppendRow(table.Row{"Gas", st.Native.StringFixed(4)})
	tw.AppendSeparator()
	tw.AppendRow(table.Row{"Ticks", st.Ticks})
	if !st.TickAt.IsZero() {
		tw.AppendRow(table.Row{"Last tick", st.TickAt.Format("2006-01-02 15:04:05")})
	}
	if st.LastError != "" {
		tw.AppendRow(table.Row{"Last error", st.LastError})
	}

	return tw.Render()
}
