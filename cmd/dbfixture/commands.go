package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/shibukawa/dbfixture"
	"github.com/shibukawa/dbfixture/assertion"
	"github.com/shibukawa/dbfixture/dataset"
	"github.com/shibukawa/dbfixture/runner"

	// database drivers selectable through the configuration file
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

var (
	successFmt = color.New(color.FgGreen).SprintfFunc()
	failureFmt = color.New(color.FgRed).SprintfFunc()
)

// ApplyCmd represents the apply command
type ApplyCmd struct {
	Connection string   `help:"Connection name from the configuration" short:"c"`
	Operation  string   `help:"Operation to apply" default:"clean-insert" short:"o"`
	Datasets   []string `arg:"" help:"Dataset locations relative to dataset_dir"`
}

// Run executes the apply command
func (cmd *ApplyCmd) Run(appCtx *Context) error {
	config, err := dbfixture.LoadConfig(appCtx.Config)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	op, err := dbfixture.ParseOperation(cmd.Operation)
	if err != nil {
		return err
	}

	connections := runner.NewConnectionRegistry(config.Databases, config.DefaultConnection)
	defer connections.CloseAll()

	conn, err := connections.Get(cmd.Connection)
	if err != nil {
		return err
	}

	ds, err := loadAll(config, cmd.Datasets)
	if err != nil {
		return err
	}

	if appCtx.Verbose {
		fmt.Printf("Applying %s to connection %s (%d tables)\n", op, conn.Name, ds.Len())
	}

	if err := conn.Executor.Execute(context.Background(), op, ds); err != nil {
		return err
	}

	fmt.Println(successFmt("Applied %s: %d tables", op, ds.Len()))

	return nil
}

// VerifyCmd represents the verify command
type VerifyCmd struct {
	Connection string   `help:"Connection name from the configuration" short:"c"`
	NonStrict  bool     `help:"Ignore tables and columns present only in the database"`
	Table      string   `help:"Restrict comparison to a single table" short:"t"`
	Query      string   `help:"Compare against a SQL query result (requires --table)" short:"q"`
	Datasets   []string `arg:"" help:"Expected dataset locations relative to dataset_dir"`
}

// Run executes the verify command
func (cmd *VerifyCmd) Run(appCtx *Context) error {
	config, err := dbfixture.LoadConfig(appCtx.Config)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	connections := runner.NewConnectionRegistry(config.Databases, config.DefaultConnection)
	defer connections.CloseAll()

	conn, err := connections.Get(cmd.Connection)
	if err != nil {
		return err
	}

	expected, err := loadAll(config, cmd.Datasets)
	if err != nil {
		return err
	}

	mode := dbfixture.Strict
	if cmd.NonStrict {
		mode = dbfixture.NonStrict
	}

	ctx := context.Background()

	switch {
	case cmd.Query != "":
		if cmd.Table == "" {
			return dbfixture.ErrQueryRequiresTable
		}

		expectedTable, err := expected.MustTable(cmd.Table)
		if err != nil {
			return err
		}

		actualTable, err := conn.Executor.FetchQueryTable(ctx, cmd.Table, cmd.Query)
		if err != nil {
			return err
		}

		err = assertion.CompareTables(expectedTable, actualTable, mode, nil)

		return cmd.report(err)
	case cmd.Table != "":
		expectedTable, err := expected.MustTable(cmd.Table)
		if err != nil {
			return err
		}

		actualTable, err := conn.Executor.FetchTable(ctx, cmd.Table)
		if err != nil {
			return err
		}

		err = assertion.CompareTables(expectedTable, actualTable, mode, nil)

		return cmd.report(err)
	default:
		actual, err := conn.Executor.FetchDataSet(ctx)
		if err != nil {
			return err
		}

		err = assertion.CompareDataSets(expected, actual, mode, nil)

		return cmd.report(err)
	}
}

func (cmd *VerifyCmd) report(err error) error {
	if err == nil {
		fmt.Println(successFmt("Database state matches the expected datasets"))
		return nil
	}

	if fe, ok := assertion.AsFailure(err); ok {
		fmt.Println(failureFmt("Verification failed"))
		fmt.Println(assertion.FormatFailure(fe))
	}

	return err
}

// ValidateCmd represents the validate command
type ValidateCmd struct {
	Datasets []string `arg:"" help:"Dataset locations relative to dataset_dir"`
}

// Run executes the validate command
func (cmd *ValidateCmd) Run(appCtx *Context) error {
	config, err := dbfixture.LoadConfig(appCtx.Config)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	loader := dataset.NewFileLoader(config.DatasetDir)

	failed := 0

	for _, location := range cmd.Datasets {
		ds, err := loader.LoadDataset("", location)
		if err != nil {
			failed++

			fmt.Println(failureFmt("%s: %v", location, err))

			continue
		}

		rows := 0

		for _, name := range ds.TableNames() {
			table, _ := ds.Table(name)
			rows += len(table.Rows)
		}

		fmt.Println(successFmt("%s: %d tables, %d rows", filepath.Base(location), ds.Len(), rows))
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d dataset(s) failed validation", dbfixture.ErrDatasetLoad, failed)
	}

	return nil
}

func loadAll(config *dbfixture.Config, locations []string) (*dataset.Dataset, error) {
	loader := dataset.NewFileLoader(config.DatasetDir)

	var sets []*dataset.Dataset

	for _, location := range locations {
		ds, err := loader.LoadDataset("", location)
		if err != nil {
			return nil, err
		}

		sets = append(sets, ds)
	}

	return dataset.Compose(config.Composition.CombineRows, sets...), nil
}
