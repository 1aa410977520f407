package agentclient

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	api_v1 "github.com/nais/agentdeploy/pkg/agentd/api/v1"
)

// PrintDeployments writes one line per deployment as aligned columns.
func PrintDeployments(w io.Writer, deployments []api_v1.Deployment) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tOWNER\tSTATUS\tRUNNING\tUPDATED\tERROR")
	for _, d := range deployments {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
			d.ID,
			d.Name,
			d.Owner,
			d.Status,
			d.Running,
			time.Unix(d.LastUpdate, 0).UTC().Format(time.RFC3339),
			d.LastError,
		)
	}
	return tw.Flush()
}
