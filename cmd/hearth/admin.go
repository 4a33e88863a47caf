package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/hearth/internal/disk"
	"github.com/jbweber/hearth/internal/output"
	"github.com/jbweber/hearth/internal/store"
	"github.com/jbweber/hearth/internal/vm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and seed defaults",
	Long: `Create or upgrade the metadata schema, then seed the default roles
(admin, member) and the images listed in the configuration.

Safe to run repeatedly: applied migrations and existing rows are skipped.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		db, err := openDatabase(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close(db) }()

		v, err := store.NewMigrator(db).CurrentVersion(cmd.Context())
		if err != nil {
			return err
		}
		logger.Info("database ready", "driver", cfg.Database.Driver, "schema_version", v, "images", len(cfg.Images))
		fmt.Printf("✓ Database at schema version %d\n", v)
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Report ghost VMs",
	Long: `List hypervisor domains that have no metadata record.

Ghost VMs are reported only. Nothing is modified.

Output formats:
  -o table  Human-readable table (default)
  -o yaml   YAML sequence
  -o json   JSON array`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		db, err := openDatabase(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close(db) }()

		client, err := connectLibvirt(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeLibvirt(client, logger)

		orch := vm.NewOrchestrator(client,
			disk.NewManager(store.NewImageRepository(db), cfg.DiskOptions(), logger),
			store.NewVMRepository(db),
			vm.WithLogger(logger),
		)

		ghosts, err := orch.ReconcileVMs(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to reconcile: %w", err)
		}

		result, err := formatter.FormatGhosts(ghosts)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		fmt.Print(result)
		return nil
	},
}

var vmsProject string

var vmsCmd = &cobra.Command{
	Use:   "vms --project <name>",
	Short: "List a project's VMs",
	Long: `List the VMs of a project with their live hypervisor state, newest first.

Output formats:
  -o table  Human-readable table (default)
  -o yaml   One YAML document per VM
  -o json   JSON array`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		db, err := openDatabase(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close(db) }()

		project, err := store.NewProjectRepository(db).FindByName(cmd.Context(), vmsProject)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("project %q not found", vmsProject)
		}
		if err != nil {
			return err
		}

		client, err := connectLibvirt(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeLibvirt(client, logger)

		orch := vm.NewOrchestrator(client,
			disk.NewManager(store.NewImageRepository(db), cfg.DiskOptions(), logger),
			store.NewVMRepository(db),
			vm.WithLogger(logger),
		)

		views, err := orch.ListVMs(cmd.Context(), project.ID)
		if err != nil {
			return err
		}

		result, err := formatter.FormatVMs(views)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		fmt.Print(result)
		return nil
	},
}

var testConnCmd = &cobra.Command{
	Use:   "test-conn",
	Short: "Test libvirt connection",
	Long:  `Test connectivity to the libvirt daemon and count the defined domains.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		fmt.Printf("Testing libvirt connection at %s...\n", cfg.Libvirt.Socket)
		client, err := connectLibvirt(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeLibvirt(client, logger)
		fmt.Println("✓ Connected to libvirt daemon")

		if err := client.Ping(); err != nil {
			return fmt.Errorf("connection test failed: %w", err)
		}

		uuids, err := client.ListAllDomainUUIDs()
		if err != nil {
			return err
		}
		fmt.Printf("✓ %d domains defined\n", len(uuids))

		fmt.Println("\nConnection test successful!")
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{reconcileCmd, vmsCmd} {
		c.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, yaml, json)")
		c.Flags().BoolVar(&noHeaders, "no-headers", false, "omit table headers")
	}

	vmsCmd.Flags().StringVarP(&vmsProject, "project", "p", "", "project name")
	_ = vmsCmd.MarkFlagRequired("project")
}

func newFormatter() (output.Formatter, error) {
	if err := output.ValidateFormat(outputFormat); err != nil {
		return nil, err
	}
	return output.NewFormatter(output.Options{
		Format:    output.Format(outputFormat),
		NoHeaders: noHeaders,
	})
}
