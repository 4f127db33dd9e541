// 运维命令行: 账号审核、重置密码、备份与重建索引
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"CityWatch/internal/listeners"
	"CityWatch/internal/models"
	"CityWatch/pkg/backup"
	"CityWatch/pkg/config"
	"CityWatch/pkg/logger"
	"CityWatch/pkg/search"
	"CityWatch/pkg/util"

	"github.com/spf13/pflag"
	"gorm.io/gorm"
)

type command struct {
	usage string
	run   func(db *gorm.DB, cfg *config.Config, args []string) error
}

var commands = map[string]command{
	"create-user":    {"create-user --email E --password P --role R [--name N]", createUser},
	"approve":        {"approve --id ID", approveAccount},
	"reject":         {"reject --id ID [--note N]", rejectAccount},
	"reset-password": {"reset-password --email E --password P", resetPassword},
	"backup":         {"backup [--dir D] [--keep N]", runBackup},
	"reindex":        {"reindex [--path P]", reindex},
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin <command> [flags]")
	for name, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-15s %s\n", name, c.usage)
	}
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		usage()
		os.Exit(2)
	}
	if err := config.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.GlobalConfig
	if err := logger.Init(&cfg.Log, cfg.Mode); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := util.InitDatabase(cfg.DBDriver, cfg.DSN, nil)
	if err == nil {
		err = models.Migrate(db)
	}
	if err == nil {
		err = cmd.run(db, cfg, os.Args[2:])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func createUser(db *gorm.DB, _ *config.Config, args []string) error {
	fs := pflag.NewFlagSet("create-user", pflag.ContinueOnError)
	email := fs.String("email", "", "login email")
	password := fs.String("password", "", "initial password")
	role := fs.String("role", models.RoleStaff, "admin, officer, staff or citizen")
	name := fs.String("name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !models.IsValidRole(*role) {
		return fmt.Errorf("invalid role %q", *role)
	}
	user, err := models.CreateUser(db, *email, *password, *name, *role)
	if err != nil {
		return err
	}
	fmt.Printf("created user %d <%s> as %s\n", user.ID, user.Email, user.Role)
	return nil
}

func approveAccount(db *gorm.DB, _ *config.Config, args []string) error {
	fs := pflag.NewFlagSet("approve", pflag.ContinueOnError)
	id := fs.Uint("id", 0, "pending account id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		return fmt.Errorf("--id is required")
	}
	user, _, err := models.ApprovePendingAccount(db, *id, "cli")
	if err != nil {
		return err
	}
	fmt.Printf("approved: user %d <%s> as %s\n", user.ID, user.Email, user.Role)
	return nil
}

func rejectAccount(db *gorm.DB, _ *config.Config, args []string) error {
	fs := pflag.NewFlagSet("reject", pflag.ContinueOnError)
	id := fs.Uint("id", 0, "pending account id")
	note := fs.String("note", "", "reason shown to the applicant")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		return fmt.Errorf("--id is required")
	}
	pa, err := models.RejectPendingAccount(db, *id, "cli", *note)
	if err != nil {
		return err
	}
	fmt.Printf("rejected request %d <%s>\n", pa.ID, pa.Email)
	return nil
}

func resetPassword(db *gorm.DB, _ *config.Config, args []string) error {
	fs := pflag.NewFlagSet("reset-password", pflag.ContinueOnError)
	email := fs.String("email", "", "login email")
	password := fs.String("password", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	user, err := models.GetUserByEmail(db, *email)
	if err != nil {
		return err
	}
	if err := models.UpdatePassword(db, user, *password); err != nil {
		return err
	}
	fmt.Printf("password updated for %s\n", user.Email)
	return nil
}

func runBackup(db *gorm.DB, cfg *config.Config, args []string) error {
	fs := pflag.NewFlagSet("backup", pflag.ContinueOnError)
	dir := fs.String("dir", cfg.BackupPath, "output directory")
	keep := fs.Int("keep", 14, "number of backups to keep, 0 keeps all")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	path, err := backup.Execute(ctx, backup.Options{Driver: cfg.DBDriver, DSN: cfg.DSN, Dir: *dir, Keep: *keep, DB: db})
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

// reindex 只对磁盘索引有意义, 内存索引随服务启动重建
func reindex(db *gorm.DB, cfg *config.Config, args []string) error {
	fs := pflag.NewFlagSet("reindex", pflag.ContinueOnError)
	path := fs.String("path", cfg.SearchPath, "bleve index directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("no index path configured, the in-memory index is rebuilt on server start")
	}
	engine, err := search.New(search.Config{IndexPath: *path})
	if err != nil {
		return err
	}
	defer engine.Close()
	n, err := listeners.ReindexAll(context.Background(), db, engine)
	if err != nil {
		return err
	}
	fmt.Printf("indexed %d documents into %s\n", n, *path)
	return nil
}
