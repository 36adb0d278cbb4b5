package render

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/trebuchet-org/treb-plan/internal/usecase"
)

// NetworksRenderer renders network lists
type NetworksRenderer struct {
	out io.Writer
}

// NewNetworksRenderer creates a new networks renderer
func NewNetworksRenderer(out io.Writer) *NetworksRenderer {
	return &NetworksRenderer{
		out: out,
	}
}

// RenderNetworksList renders the configured networks with their live status
func (r *NetworksRenderer) RenderNetworksList(result *usecase.ListNetworksResult, offline bool) error {
	if len(result.Networks) == 0 {
		fmt.Fprintln(r.out, "No networks configured in treb.toml [networks]")
		return nil
	}

	fmt.Fprintln(r.out, "🌐 Available Networks:")
	fmt.Fprintln(r.out)

	t := newTable(r.out, table.Row{"", "Network", "Chain ID", "Head", "Latency", "Signer", "URL"})
	now := time.Now()
	for _, network := range result.Networks {
		t.AppendRow(table.Row{
			statusIcon(network, offline),
			network.Name,
			chainIDCell(network),
			headCell(network.Head, now),
			latencyCell(network.Head),
			network.Signer,
			network.URL,
		})
	}
	t.Render()

	var failed bool
	for _, network := range result.Networks {
		if network.Error != nil {
			if !failed {
				fmt.Fprintln(r.out)
				failed = true
			}
			fmt.Fprintf(r.out, "  ❌ %s - Error: %v\n", network.Name, network.Error)
		}
	}
	return nil
}

func statusIcon(network usecase.NetworkStatus, offline bool) string {
	switch {
	case network.Error != nil:
		return "❌"
	case offline:
		return "•"
	default:
		return "✅"
	}
}

func chainIDCell(network usecase.NetworkStatus) string {
	switch {
	case network.Mismatch():
		return color.New(color.FgRed).Sprintf("%d (live %d)", network.ChainID, network.LiveChainID)
	case network.ChainID != 0:
		return fmt.Sprintf("%d", network.ChainID)
	case network.LiveChainID != 0:
		return color.New(color.Faint).Sprintf("%d", network.LiveChainID)
	default:
		return "-"
	}
}

// headCell shows the latest block and how long ago it was produced.
// A head older than staleHead is highlighted: the node may be out of sync.
func headCell(head *usecase.ChainStatus, now time.Time) string {
	if head == nil {
		return "-"
	}
	if head.BlockTime.IsZero() {
		return fmt.Sprintf("#%d", head.BlockNumber)
	}
	age := now.Sub(head.BlockTime)
	cell := fmt.Sprintf("#%d (%s ago)", head.BlockNumber, formatAge(age))
	if age > staleHead {
		return color.New(color.FgYellow).Sprint(cell)
	}
	return cell
}

const staleHead = 10 * time.Minute

func latencyCell(head *usecase.ChainStatus) string {
	if head == nil {
		return "-"
	}
	return fmt.Sprintf("%dms", head.Latency.Milliseconds())
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
