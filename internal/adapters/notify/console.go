package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alejandrodnm/listinglab/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier y pinta los experimentos en el CLI.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notifier que escribe en stdout. Con table=false cada
// ciclo del monitor se reporta en una línea compacta.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notifier que escribe en w.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Notify imprime las evaluaciones de un ciclo del monitor.
func (c *Console) Notify(_ context.Context, evaluations []domain.Evaluation) error {
	now := time.Now().Format("15:04:05")
	if len(evaluations) == 0 {
		fmt.Fprintf(c.out, "[%s] no running experiments\n", now)
		return nil
	}

	if !c.table {
		c.printCompact(now, evaluations)
		return nil
	}

	winners, actions := 0, 0
	for _, ev := range evaluations {
		if ev.Decision.HasWinner {
			winners++
		}
		if ev.Action != "" {
			actions++
		}
	}
	fmt.Fprintf(c.out, "\n[%s] %d experiments evaluated, %d with a winner, %d transitions\n",
		now, len(evaluations), winners, actions)

	table := tablewriter.NewWriter(c.out)
	table.Header("Experiment", "Status", "Clicks", "Conv", "Signif", "Lift", "Decision", "Action")
	for _, ev := range evaluations {
		clicks, conv := "-", "-"
		if ev.Collection != nil {
			clicks = fmt.Sprintf("%d", ev.Collection.Clicks)
			conv = fmt.Sprintf("%d", ev.Collection.Conversions)
			if ev.Collection.Simulated {
				clicks += " (sim)"
			}
		}
		table.Append(
			domain.TruncateName(ev.ExperimentName, 30),
			string(ev.Status),
			clicks,
			conv,
			formatSignificance(ev.Analysis),
			fmt.Sprintf("%+.1f%%", ev.Analysis.LiftPercent),
			string(ev.Decision.Reason),
			orDash(ev.Action),
		)
	}
	table.Render()

	for _, ev := range evaluations {
		fmt.Fprintf(c.out, "  %s: %s\n", domain.TruncateName(ev.ExperimentName, 30), ev.Recommendation)
	}
	return nil
}

func (c *Console) printCompact(now string, evaluations []domain.Evaluation) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %d exps", now, len(evaluations))
	for _, ev := range evaluations {
		fmt.Fprintf(&sb, " | %s %s %s",
			domain.TruncateName(ev.ExperimentName, 20),
			formatSignificance(ev.Analysis),
			ev.Decision.Reason,
		)
		if ev.Action != "" {
			fmt.Fprintf(&sb, " -> %s", ev.Action)
		}
	}
	fmt.Fprintln(c.out, sb.String())
}

// PrintExperiments imprime una fila por experimento.
func (c *Console) PrintExperiments(exps []*domain.Experiment) {
	if len(exps) == 0 {
		fmt.Fprintln(c.out, "No experiments found.")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("ID", "Name", "Type", "SKU", "Status", "Signif", "Winner", "Ends")
	for _, exp := range exps {
		winner := "-"
		if v := exp.Winner(); v != nil {
			winner = v.Name
		}
		ends := "-"
		if exp.EndDate != nil {
			ends = exp.EndDate.Format("2006-01-02")
		}
		table.Append(
			exp.ID,
			domain.TruncateName(exp.Name, 30),
			string(exp.Type),
			exp.SKU,
			string(exp.Status),
			fmt.Sprintf("%.1f%%", exp.StatisticalSignificance),
			winner,
			ends,
		)
	}
	table.Render()
}

// PrintExperiment imprime la cabecera del experimento y los contadores de sus variantes.
func (c *Console) PrintExperiment(exp *domain.Experiment) {
	fmt.Fprintf(c.out, "Experiment %s\n", exp.ID)
	fmt.Fprintf(c.out, "  Name:        %s\n", exp.Name)
	fmt.Fprintf(c.out, "  Type:        %s   Metric: %s   Confidence: %.0f%%\n",
		exp.Type, exp.PrimaryMetric, exp.ConfidenceLevel)
	fmt.Fprintf(c.out, "  SKU:         %s (%s)   Product: %s\n", exp.SKU, exp.Marketplace, orDash(exp.ProductRef))
	fmt.Fprintf(c.out, "  Status:      %s   Remote: %s   Auto-apply: %t\n",
		exp.Status, orDash(exp.RemoteExperimentID), exp.AutoApplyWinner)
	if exp.StartDate != nil && exp.EndDate != nil {
		fmt.Fprintf(c.out, "  Window:      %s to %s (%d days)\n",
			exp.StartDate.Format("2006-01-02"), exp.EndDate.Format("2006-01-02"), exp.DurationDays)
	} else {
		fmt.Fprintf(c.out, "  Duration:    %d days\n", exp.DurationDays)
	}

	winner := exp.Winner()
	table := tablewriter.NewWriter(c.out)
	table.Header("", "Variant", "Traffic", "Impr", "Clicks", "Conv", "CTR", "CR", "Rev/click")
	for i, v := range exp.Variants {
		mark := ""
		if i == 0 {
			mark = "control"
		}
		if winner != nil && winner.ID == v.ID {
			mark += "*"
		}
		table.Append(
			mark,
			domain.TruncateName(v.Name, 24),
			fmt.Sprintf("%.1f%%", v.TrafficPercentage),
			fmt.Sprintf("%d", v.Impressions),
			fmt.Sprintf("%d", v.Clicks),
			fmt.Sprintf("%d", v.Conversions),
			fmt.Sprintf("%.2f%%", v.CTR()*100),
			fmt.Sprintf("%.2f%%", v.ConversionRate()*100),
			fmt.Sprintf("$%.2f", v.RevenuePerClick()),
		)
	}
	table.Render()
}

// PrintEvaluation imprime la estadística, la decisión y la recomendación.
func (c *Console) PrintEvaluation(ev domain.Evaluation) {
	a := ev.Analysis
	fmt.Fprintf(c.out, "\nAnalysis of %s\n", ev.ExperimentName)
	if !a.Sufficient() {
		fmt.Fprintf(c.out, "  Insufficient data: %d conversions so far\n", a.CurrentConversions)
	} else {
		fmt.Fprintf(c.out, "  Conversion rate: control %.2f%%, treatment %.2f%%\n", a.ControlRate*100, a.TreatmentRate*100)
		fmt.Fprintf(c.out, "  Lift:            %+.1f%%\n", a.LiftPercent)
		fmt.Fprintf(c.out, "  z = %.3f, p = %.4f, significance %.1f%%\n", a.ZScore, a.PValue, a.Significance)
		fmt.Fprintf(c.out, "  %.0f%% CI for difference: [%+.2f%%, %+.2f%%]\n",
			a.ConfidenceLevel, a.CILower*100, a.CIUpper*100)
		reached := "not reached"
		if a.SampleSizeReached {
			reached = "reached"
		}
		fmt.Fprintf(c.out, "  Sample size:     %d clicks (%s)\n", a.SampleSize, reached)
	}
	fmt.Fprintf(c.out, "  Decision:        %s\n", ev.Decision.Reason)
	fmt.Fprintf(c.out, "  Recommendation:  %s\n", ev.Recommendation)
}

// PrintHistory imprime las evaluaciones guardadas, las más recientes primero.
func (c *Console) PrintHistory(evaluations []domain.Evaluation) {
	if len(evaluations) == 0 {
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Evaluated", "Clicks", "Signif", "Lift", "Decision", "Action")
	for _, ev := range evaluations {
		clicks := "-"
		if ev.Collection != nil {
			clicks = fmt.Sprintf("%d", ev.Collection.Clicks)
		}
		table.Append(
			ev.EvaluatedAt.Format("2006-01-02 15:04"),
			clicks,
			formatSignificance(ev.Analysis),
			fmt.Sprintf("%+.1f%%", ev.Analysis.LiftPercent),
			string(ev.Decision.Reason),
			orDash(ev.Action),
		)
	}
	table.Render()
}

func formatSignificance(a domain.Analysis) string {
	if !a.Sufficient() {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", a.Significance)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
