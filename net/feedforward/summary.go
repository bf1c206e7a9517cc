package feedforward

import "fmt"
import "strings"

import "github.com/olekukonko/tablewriter"

import "github.com/neurlang/convtrain/layer"

// Summary renders the built network as a table of layers, output shapes and parameter counts
func (f *FeedforwardNetwork) Summary() string {
	var b strings.Builder
	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"LAYER", "OUTPUT", "PARAMS"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.Append([]string{"input", fmt.Sprint(f.input), "0"})
	for i, l := range f.layers {
		var shape []int
		if i < len(f.shapes) {
			shape = f.shapes[i]
		}
		table.Append([]string{l.Name(), fmt.Sprint(shape), fmt.Sprint(layer.Count(l.Params()))})
	}
	table.SetFooter([]string{"", "total", fmt.Sprint(layer.Count(f.params))})
	table.Render()
	return b.String()
}
