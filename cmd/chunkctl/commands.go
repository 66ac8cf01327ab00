package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uplo-tech/chunkvault/engine"
)

// openEngine opens an existing project, applying --base-dir if set. Every
// command function is responsible for calling Detach on the returned
// engine before returning, releasing the project lock promptly instead of
// relying on process exit.
func openEngine(projectID string) (*engine.Engine, error) {
	var opts []engine.Option
	if flagBaseDir != "" {
		opts = append(opts, engine.WithBaseDir(flagBaseDir))
	}
	return engine.Open(projectID, opts...)
}

func printJSON(v interface{}) error {
	blob, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(blob))
	return nil
}

var attachCmd = &cobra.Command{
	Use:   "attach [project]",
	Short: "create a new project, or confirm an existing one can be attached",
	Long:  "Create a new project directory, or confirm an existing one can be attached to, then detach cleanly.",
	Run:   wrap(attachcmd),
}

func attachcmd(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: chunkctl attach [project]")
	}
	var opts []engine.Option
	if flagBaseDir != "" {
		opts = append(opts, engine.WithBaseDir(flagBaseDir))
	}
	e, err := engine.Open(args[0], opts...)
	if err == engine.ErrProjectNotFound {
		e, err = engine.New(args[0], opts...)
	}
	if err != nil {
		return err
	}
	defer e.Detach()
	fmt.Println("attached to project", e.ProjectID(), "at", e.ProjectPath())
	return nil
}

var stageCmd = &cobra.Command{
	Use:   "stage [project] [chunk] [json]",
	Short: "stage a chunk update and commit it",
	Long:  "Stage a chunk update and force an immediate sync to disk. json must be a JSON object.",
	Run:   wrap(stagecmd),
}

func stagecmd(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: chunkctl stage [project] [chunk] [json]")
	}
	e, err := openEngine(args[0])
	if err != nil {
		return err
	}
	defer e.Detach()

	var value engine.Chunk
	if err := json.Unmarshal([]byte(args[2]), &value); err != nil {
		return fmt.Errorf("could not parse chunk json: %w", err)
	}
	if err := e.StageUpdate(args[1], value); err != nil {
		return err
	}
	e.ForceSync()
	return nil
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [project] [chunk]",
	Short: "fetch the current value of a chunk",
	Long:  "Fetch the current value of a chunk, resolving staged writes, the primary file, and the backup file in that order.",
	Run:   wrap(fetchcmd),
}

func fetchcmd(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: chunkctl fetch [project] [chunk]")
	}
	e, err := openEngine(args[0])
	if err != nil {
		return err
	}
	defer e.Detach()

	value, err := e.FetchChunk(args[1])
	if err != nil {
		return err
	}
	return printJSON(value)
}

var syncCmd = &cobra.Command{
	Use:   "sync [project]",
	Short: "force an immediate flush of any staged chunk updates",
	Long:  "Force an immediate flush of any staged chunk updates to disk.",
	Run:   wrap(synccmd),
}

func synccmd(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: chunkctl sync [project]")
	}
	e, err := openEngine(args[0])
	if err != nil {
		return err
	}
	defer e.Detach()
	e.ForceSync()
	return nil
}

var healthCmd = &cobra.Command{
	Use:   "health [project]",
	Short: "print a diagnostic summary of a project",
	Long:  "Print a diagnostic summary of a project: shard count, checkpoint count, and pending sync count.",
	Run:   wrap(healthcmd),
}

func healthcmd(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: chunkctl health [project]")
	}
	e, err := openEngine(args[0])
	if err != nil {
		return err
	}
	defer e.Detach()
	return printJSON(e.GetHealthReport())
}

var listProjectsCmd = &cobra.Command{
	Use:   "list-projects",
	Short: "list every project under the base directory",
	Long:  "List every project under the base directory (--base-dir, or CHUNKVAULT_BASE_DIR, or the default).",
	Run:   wrap(listprojectscmd),
}

func listprojectscmd(args []string) error {
	baseDir := flagBaseDir
	if baseDir == "" {
		baseDir = engine.DefaultBaseDir
	}
	projects, err := engine.ListProjects(baseDir)
	if err != nil {
		return err
	}
	for _, p := range projects {
		fmt.Println(p)
	}
	return nil
}

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "create, list, and restore checkpoints",
	Long:  "Create, list, and restore point-in-time checkpoints of a project.",
}

var checkpointCreateCmd = &cobra.Command{
	Use:   "create [project] [label] [notes]",
	Short: "create a checkpoint",
	Long:  "Force a sync and snapshot the project's current chunk set into a new checkpoint archive.",
	Run:   wrap(checkpointcreatecmd),
}

func checkpointcreatecmd(args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("usage: chunkctl checkpoint create [project] [label] [notes]")
	}
	e, err := openEngine(args[0])
	if err != nil {
		return err
	}
	defer e.Detach()

	notes := ""
	if len(args) == 3 {
		notes = args[2]
	}
	filename, err := e.CreateCheckpoint(args[1], notes, 0)
	if err != nil {
		return err
	}
	fmt.Println(filename)
	return nil
}

var checkpointListCmd = &cobra.Command{
	Use:   "list [project]",
	Short: "list checkpoints",
	Long:  "List every checkpoint archive for a project, newest first.",
	Run:   wrap(checkpointlistcmd),
}

func checkpointlistcmd(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: chunkctl checkpoint list [project]")
	}
	e, err := openEngine(args[0])
	if err != nil {
		return err
	}
	defer e.Detach()

	checkpoints, err := e.ListCheckpoints()
	if err != nil {
		return err
	}
	return printJSON(checkpoints)
}

var checkpointRestoreCmd = &cobra.Command{
	Use:   "restore [project] [filename]",
	Short: "restore a checkpoint",
	Long:  "Replace a project's entire chunk set with the contents of a previously created checkpoint archive.",
	Run:   wrap(checkpointrestorecmd),
}

func checkpointrestorecmd(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: chunkctl checkpoint restore [project] [filename]")
	}
	e, err := openEngine(args[0])
	if err != nil {
		return err
	}
	defer e.Detach()
	return e.RestoreCheckpoint(args[1])
}
