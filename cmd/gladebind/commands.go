package main

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"gladebind/internal/binding"
	"gladebind/internal/logging"
	"gladebind/internal/runtimes/yaegirt"
)

func listBindings(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	var rows [][]string
	for _, b := range s.reg.GetAll() {
		var caps []string
		for _, c := range b.Capabilities() {
			caps = append(caps, c.String())
		}
		rows = append(rows, []string{
			b.Name(),
			b.Path(),
			strings.Join(caps, ", "),
			strconv.Itoa(b.Catalog().Len()),
		})
	}
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No bindings loaded.")
		return nil
	}

	md := "# Bindings\n\n" + mdTable([]string{"Name", "Module", "Capabilities", "Scripts"}, rows)
	return render(cmd.OutOrStdout(), md)
}

func scriptRows(scripts []*binding.Script) [][]string {
	rows := make([][]string, 0, len(scripts))
	for _, sc := range scripts {
		rows = append(rows, []string{sc.Name, sc.Label(), sc.Path})
	}
	return rows
}

func listScripts(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	b, err := s.binding(args[0])
	if err != nil {
		return err
	}
	catalog := b.Catalog()
	headers := []string{"Name", "Label", "Path"}

	var md strings.Builder
	if scriptsOwner != "" {
		fmt.Fprintf(&md, "# %s scripts for %s\n\n", b.Name(), scriptsOwner)
		md.WriteString(mdTable(headers, scriptRows(catalog.ListForOwner(scriptsOwner))))
		return render(cmd.OutOrStdout(), md.String())
	}

	fmt.Fprintf(&md, "# %s scripts\n\n## Global\n\n", b.Name())
	md.WriteString(mdTable(headers, scriptRows(catalog.ListGlobal())))
	for _, owner := range catalog.Owners() {
		fmt.Fprintf(&md, "\n## %s\n\n", owner)
		md.WriteString(mdTable(headers, scriptRows(catalog.ListForOwner(owner))))
	}
	return render(cmd.OutOrStdout(), md.String())
}

func runScript(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := s.runContext(cmd)
	defer cancel()

	code, err := s.reg.RunScript(ctx, args[0], args[1], args[2:])
	if err != nil {
		return err
	}
	if code != 0 {
		return &exitError{code: code}
	}
	return nil
}

func loadLibrary(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.reg.LibraryLoad(cmdContext(cmd), args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "loaded %s into %s\n", args[1], args[0])
	return nil
}

func listActions(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	var rows [][]string
	for _, a := range s.reg.ScriptActions(args[0]) {
		rows = append(rows, []string{a.ID, a.Label, a.Script.Path})
	}
	if len(rows) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No actions for %s.\n", args[0])
		return nil
	}
	md := fmt.Sprintf("# Actions for %s\n\n", args[0]) + mdTable([]string{"ID", "Label", "Script"}, rows)
	return render(cmd.OutOrStdout(), md)
}

func activateAction(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	action, err := s.reg.FindAction(args[0], args[1])
	if err != nil {
		return err
	}
	ctx, cancel := s.runContext(cmd)
	defer cancel()

	code, err := action.Activate(ctx, args[2])
	if err != nil {
		return err
	}
	if code != 0 {
		return &exitError{code: code}
	}
	return nil
}

func openConsole(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	b, err := s.binding(args[0])
	if err != nil {
		return err
	}
	model, err := b.ConsoleNew()
	if err != nil {
		return err
	}

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithContext(cmdContext(cmd)),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	_, err = p.Run()
	return err
}

func watchScripts(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	w, err := binding.NewScriptWatcher(s.reg, s.cfg.GetDebounce())
	if err != nil {
		return err
	}
	defer w.Stop()

	ctx := cmdContext(cmd)
	if err := w.Start(ctx); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "watching %d director(ies), ctrl+c to stop\n", len(w.WatchedDirs()))

	for name := range w.Changes() {
		if err := s.reg.RescanScripts(name); err != nil {
			logging.WatcherError("rescan %s: %v", name, err)
			continue
		}
		fmt.Fprintf(out, "%s: %d script(s)\n", name, s.reg.Get(name).Catalog().Len())
	}
	logging.Watcher("watch stopped: %+v", w.Stats())
	return nil
}

func showTypes(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	rt, err := yaegirt.New(yaegirt.Options{Host: s.host})
	if err != nil {
		return err
	}
	defer rt.Close()

	class, err := rt.Adaptor(args[0])
	if err != nil {
		return err
	}

	var md strings.Builder
	fmt.Fprintf(&md, "# %s\n\n", class.Name())
	fmt.Fprintf(&md, "- constructible: %v\n", class.Constructible())
	fmt.Fprintf(&md, "- ancestry: %s\n", strings.Join(class.Ancestry(), " → "))
	id, _ := s.host.Types().Lookup(args[0])
	fmt.Fprintf(&md, "- properties: %s\n", strings.Join(s.host.Types().Properties(id), ", "))
	fmt.Fprintf(&md, "\n## Mirrored classes\n\n")
	for i, name := range rt.Classes() {
		fmt.Fprintf(&md, "%d. %s\n", i+1, name)
	}
	return render(cmd.OutOrStdout(), md.String())
}
