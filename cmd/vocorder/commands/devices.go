package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vocorder/vocorder/pkg/audio/engine"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		devs, err := engine.Devices()
		if err != nil {
			return err
		}
		fmt.Println(titleStyle.Render("Audio devices"))
		for _, d := range devs {
			marker := ""
			if d.DefaultInput {
				marker += " " + labelStyle.Render("[default input]")
			}
			if d.DefaultOutput {
				marker += " " + labelStyle.Render("[default output]")
			}
			fmt.Printf("%3d  %s%s\n", d.Index, d.Name, marker)
			fmt.Println(dimStyle.Render(fmt.Sprintf(
				"     in: %d  out: %d  rate: %.0f Hz",
				d.MaxInputs, d.MaxOutputs, d.DefaultSR)))
		}
		return nil
	},
}
