// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/novelx/internal/formatter"
	"github.com/urfave/cli/v3"
)

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	}
}

func pageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum number of items to return",
			Value: 50,
		},
		&cli.IntFlag{
			Name:  "offset",
			Usage: "Number of items to skip",
		},
	}
}

func flags(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func workArg() cli.Argument    { return &cli.IntArg{Name: "work-id"} }
func chapterArg() cli.Argument { return &cli.IntArg{Name: "chapter-id"} }
func groupArg() cli.Argument   { return &cli.IntArg{Name: "group-id"} }
func promptArg() cli.Argument  { return &cli.IntArg{Name: "prompt-id"} }

func yesFlag() cli.Flag {
	return &cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Skip the confirmation prompt"}
}

// worksCommand handles work listing and import
func worksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "works",
		Usage: "List, inspect and import works",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List works",
				Flags: flags(pageFlags(), jsonFlags(), []cli.Flag{
					&cli.StringFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "Search by title",
					},
				}),
				Action: r.WorksList,
			},
			{
				Name:      "show",
				Usage:     "Show a work",
				Arguments: []cli.Argument{workArg()},
				Flags:     jsonFlags(),
				Action:    r.WorksShow,
			},
			{
				Name:      "open",
				Usage:     "Open a work's source page in the browser",
				Arguments: []cli.Argument{workArg()},
				Action:    r.WorksOpen,
			},
			{
				Name:      "import",
				Usage:     "Import works from their source URLs",
				ArgsUsage: "<url> [url...]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Re-import works that already exist",
					},
				},
				Action: r.WorksImport,
			},
		},
	}
}

// chaptersCommand handles chapter listing and reading
func chaptersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "chapters",
		Aliases: []string{"ch"},
		Usage:   "List and read chapters",
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List a work's chapters and groups",
				Arguments: []cli.Argument{workArg()},
				Flags:     flags(pageFlags(), jsonFlags()),
				Action:    r.ChaptersList,
			},
			{
				Name:      "show",
				Usage:     "Show a chapter with its saved translation",
				Arguments: []cli.Argument{workArg(), chapterArg()},
				Flags: flags(jsonFlags(), []cli.Flag{
					&cli.BoolFlag{
						Name:  "source",
						Usage: "Print the source text instead of the translation",
					},
				}),
				Action: r.ChaptersShow,
			},
		},
	}
}

// groupsCommand handles chapter group management
func groupsCommand(r *Runner) *cli.Command {
	chapters := func() cli.Flag {
		return &cli.StringFlag{Name: "chapters", Usage: "Comma separated chapter ids", Required: true}
	}
	name := func() cli.Flag {
		return &cli.StringFlag{Name: "name", Usage: "Group name", Required: true}
	}

	return &cli.Command{
		Name:  "groups",
		Usage: "Manage chapter groups",
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List a work's chapter groups",
				Arguments: []cli.Argument{workArg()},
				Flags:     jsonFlags(),
				Action:    r.GroupsList,
			},
			{
				Name:      "show",
				Usage:     "Show a group and its members",
				Arguments: []cli.Argument{workArg(), groupArg()},
				Flags:     jsonFlags(),
				Action:    r.GroupsShow,
			},
			{
				Name:      "create",
				Usage:     "Group chapters under a name",
				Arguments: []cli.Argument{workArg()},
				Flags:     []cli.Flag{name(), chapters()},
				Action:    r.GroupsCreate,
			},
			{
				Name:      "rename",
				Usage:     "Rename a group",
				Arguments: []cli.Argument{workArg(), groupArg()},
				Flags:     []cli.Flag{name()},
				Action:    r.GroupsRename,
			},
			{
				Name:      "add",
				Usage:     "Add chapters to a group",
				Arguments: []cli.Argument{workArg(), groupArg()},
				Flags:     []cli.Flag{chapters()},
				Action:    r.GroupsAdd,
			},
			{
				Name:      "replace",
				Usage:     "Replace a group's members",
				Arguments: []cli.Argument{workArg(), groupArg()},
				Flags:     []cli.Flag{chapters()},
				Action:    r.GroupsReplace,
			},
			{
				Name:      "delete",
				Usage:     "Delete a group; its chapters stay in the work",
				Arguments: []cli.Argument{workArg(), groupArg()},
				Flags:     []cli.Flag{yesFlag()},
				Action:    r.GroupsDelete,
			},
		},
	}
}

// promptsCommand handles prompts, their versions and work assignment
func promptsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "prompts",
		Usage: "Manage translation prompts",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List prompts",
				Flags: flags(pageFlags(), jsonFlags(), []cli.Flag{
					&cli.StringFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "Search by name",
					},
					&cli.IntFlag{
						Name:  "work",
						Usage: "Only prompts usable by this work",
					},
				}),
				Action: r.PromptsList,
			},
			{
				Name:      "show",
				Usage:     "Show a prompt, its latest version and history",
				Arguments: []cli.Argument{promptArg()},
				Flags: flags(jsonFlags(), []cli.Flag{
					&cli.IntFlag{
						Name:  "versions",
						Usage: "Number of versions to list",
						Value: 10,
					},
				}),
				Action: r.PromptsShow,
			},
			{
				Name:  "create",
				Usage: "Create a prompt",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Usage:    "Prompt name",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "description",
						Usage: "Prompt description",
					},
				},
				Action: r.PromptsCreate,
			},
			{
				Name:      "update",
				Usage:     "Rename a prompt or change its description",
				Arguments: []cli.Argument{promptArg()},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "name",
						Usage: "New name",
					},
					&cli.StringFlag{
						Name:  "description",
						Usage: "New description",
					},
				},
				Action: r.PromptsUpdate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a prompt and its versions",
				Arguments: []cli.Argument{promptArg()},
				Flags:     []cli.Flag{yesFlag()},
				Action:    r.PromptsDelete,
			},
			{
				Name:      "version",
				Usage:     "Append a model/template version to a prompt",
				Arguments: []cli.Argument{promptArg()},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "model",
						Aliases:  []string{"m"},
						Usage:    "Model id",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "template",
						Usage: "Template text",
					},
					&cli.StringFlag{
						Name:  "template-file",
						Usage: "Read the template from a file",
					},
				},
				Action: r.PromptsVersion,
			},
			{
				Name:      "assign",
				Usage:     "Assign a prompt to a work",
				Arguments: []cli.Argument{workArg(), promptArg()},
				Action:    r.PromptsAssign,
			},
			{
				Name:      "current",
				Usage:     "Show the prompt assigned to a work",
				Arguments: []cli.Argument{workArg()},
				Flags:     jsonFlags(),
				Action:    r.PromptsCurrent,
			},
			{
				Name:   "models",
				Usage:  "List the models prompts can use",
				Flags:  jsonFlags(),
				Action: r.ModelsList,
			},
		},
	}
}

// translateCommand streams a chapter translation to stdout
func translateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "translate",
		Aliases:   []string{"tr"},
		Usage:     "Translate a chapter, printing segments as they complete",
		Arguments: []cli.Argument{workArg(), chapterArg()},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "regenerate",
				Usage: "Discard the saved translation first",
			},
			&cli.IntFlag{
				Name:  "segment",
				Usage: "Retranslate only this segment",
			},
		},
		Action: r.Translate,
	}
}

// explainCommand streams an explanation of one segment
func explainCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "explain",
		Usage:     "Explain the grammar and vocabulary of a translated segment",
		Arguments: []cli.Argument{workArg(), chapterArg(), &cli.IntArg{Name: "segment-id"}},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "regenerate",
				Usage: "Discard the saved explanation first",
			},
		},
		Action: r.Explain,
	}
}

// labCommand compares models on the same input
func labCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "lab",
		Usage: "Run text through several models side by side",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "text",
				Usage: "Source text",
			},
			&cli.StringFlag{
				Name:  "file",
				Usage: "Read the source text from a file",
			},
			&cli.StringSliceFlag{
				Name:    "model",
				Aliases: []string{"m"},
				Usage:   "Model to compare; repeat for more lanes",
			},
			&cli.StringFlag{
				Name:  "template",
				Usage: "Template used by every lane",
			},
		},
		Action: r.Lab,
	}
}

// scrapeCommand queues chapter scraping
func scrapeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "scrape",
		Usage:     "Scrape a range of chapters from the work's source",
		Arguments: []cli.Argument{workArg()},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "start",
				Usage:    "First chapter number (e.g. 1 or 2.1)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "end",
				Usage: "Last chapter number; defaults to start",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Re-scrape chapters that already exist",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Follow the scrape job until it finishes",
			},
		},
		Action: r.Scrape,
	}
}

// exportCommand writes chapters to disk
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Export a work's chapters with their translations",
		Arguments: []cli.Argument{workArg()},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Export format: markdown, csv, txt, json",
				Value:   formatter.FormatMarkdown,
			},
			&cli.StringFlag{
				Name:  "chapters",
				Usage: "Comma separated chapter ids; defaults to every chapter",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output directory",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent chapter fetches",
				Value: 4,
			},
		},
		Action: r.Export,
	}
}

// historyCommand inspects the TUI navigation history
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect navigation history",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recently visited views",
				Flags: flags(jsonFlags(), []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of entries",
						Value: 20,
					},
				}),
				Action: r.HistoryList,
			},
			{
				Name:  "clear",
				Usage: "Forget navigation history",
				Flags: []cli.Flag{
					yesFlag(),
					&cli.IntFlag{
						Name:  "keep",
						Usage: "Keep the newest N entries",
					},
				},
				Action: r.HistoryClear,
			},
		},
	}
}

// apiCommand handles direct backend calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct calls to the backend API",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET to the backend, prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output compact JSON",
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "Direct POST with JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
			{
				Name:   "health",
				Usage:  "Check that the backend is reachable",
				Action: r.APIHealth,
			},
		},
	}
}

// setupCommand handles setup operations for configuration and the history database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a config.toml from the default template",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize the history database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive reader",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "resume",
				Usage: "Reopen the last visited view",
			},
		},
		Action: r.TUI,
	}
}
