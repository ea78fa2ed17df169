package commands

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/vocorder/vocorder/pkg/analysis/cache"
	"github.com/vocorder/vocorder/pkg/analysis/notes"
	"github.com/vocorder/vocorder/pkg/audio/dsp"
)

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Inspect the note index",
	RunE: func(cmd *cobra.Command, args []string) error {
		ix, err := openNotes()
		if err != nil {
			return err
		}
		defer ix.Close()

		fmt.Println(titleStyle.Render("Note index"))
		n := 0
		for path, rec := range ix.All() {
			n++
			fmt.Printf("%s  %s %s\n",
				labelStyle.Render(fmt.Sprintf("%-4s", rec.Note)),
				path,
				dimStyle.Render(fmt.Sprintf("(%+.0f cents, %s)", rec.Cents, rec.Algo)))
		}
		if n == 0 {
			fmt.Println(dimStyle.Render("empty; run 'vocorder analyze' first"))
		}
		return nil
	},
}

// noteRecord reduces a pitch entry to its index record.
func noteRecord(e *cache.Entry) notes.Record {
	rec := notes.Record{
		MTime: e.Meta.MTime,
		Note:  e.Meta.Note,
		Algo:  e.Meta.Algo,
	}
	var sum float64
	var n int
	for _, f := range e.F0s {
		if midi, ok := dsp.F0ToMIDI(float64(f)); ok {
			sum += midi
			n++
		}
	}
	if n > 0 {
		meanMidi := sum / float64(n)
		f0 := 440.0 * math.Exp2((meanMidi-69)/12)
		_, rec.Cents = dsp.NoteFromF0(f0)
	}
	return rec
}
