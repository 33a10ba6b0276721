package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"babel/internal/language"
)

func newLanguagesCommand() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:         "languages [filter]",
		Short:       "List supported language codes",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			langs := language.All()
			if len(args) == 1 {
				langs = language.Filter(args[0])
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, langs)
			}
			renderLanguages(out, langs)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print languages as JSON")
	return cmd
}

func renderLanguages(w io.Writer, langs []language.Language) {
	if len(langs) == 0 {
		fmt.Fprintln(w, "No matching languages")
		return
	}
	rows := make([][]string, 0, len(langs))
	for _, l := range langs {
		rows = append(rows, []string{l.Code, l.Name, l.NativeName()})
	}
	fmt.Fprint(w, renderTable([]string{"Code", "Name", "Native"}, rows))
	fmt.Fprintf(w, "%d of %d languages\n", len(langs), language.Count())
}
