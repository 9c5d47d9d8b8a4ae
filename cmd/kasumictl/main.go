// kasumictl is the operator CLI: account management and content import
// against the same database the server uses.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/kasumi-cms/core/internal/config"
	"github.com/kasumi-cms/core/internal/database"
	"github.com/kasumi-cms/core/internal/models"
	"github.com/kasumi-cms/core/internal/modules/backup"
	"github.com/kasumi-cms/core/internal/modules/user"
	"github.com/kasumi-cms/core/internal/pkg/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const usage = `usage: kasumictl [-config FILE] <command> [arguments]

commands:
  adduser    -username NAME -email ADDR [-password PASS] [-active] [-roles R1,R2]
  activate   -username NAME
  deactivate -username NAME
  passwd     -username NAME [-password PASS]
  setroles   -username NAME -roles R1,R2
  showroles  -username NAME
  listroles
  import     -file DUMP.jsonl
`

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to YAML config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	if cmd == "listroles" {
		for _, name := range models.RoleNames {
			fmt.Println(name)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("config: %v", err)
	}
	logger, err := logging.New(cfg.IsDev())
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync()

	db, err := database.Connect(cfg)
	if err != nil {
		fatal("database: %v", err)
	}

	svc := user.NewService(db, cfg.BcryptCost)

	switch cmd {
	case "adduser":
		cmdAddUser(svc, args)
	case "activate":
		cmdSetActive(db, args, true)
	case "deactivate":
		cmdSetActive(db, args, false)
	case "passwd":
		cmdPasswd(db, svc, args)
	case "setroles":
		cmdSetRoles(svc, args)
	case "showroles":
		cmdShowRoles(svc, args)
	case "import":
		cmdImport(db, logger, args)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func cmdAddUser(svc *user.Service, args []string) {
	fs := flag.NewFlagSet("adduser", flag.ExitOnError)
	username := fs.String("username", "", "login name")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password (prompted when omitted)")
	active := fs.Bool("active", false, "activate the account immediately")
	roles := fs.String("roles", "", "comma-separated role names")
	fs.Parse(args)

	if *username == "" || *email == "" {
		fatal("adduser: -username and -email are required")
	}
	pass := *password
	if pass == "" {
		pass = promptPassword()
	}

	dto := &user.CreateUserDTO{
		Username: *username,
		Email:    *email,
		Password: pass,
		IsActive: *active,
	}
	if *roles != "" {
		dto.Roles = splitList(*roles)
	}
	u, err := svc.Create(dto)
	if err != nil {
		fatal("adduser: %v", err)
	}
	fmt.Printf("created user %s (active=%v, roles=%s)\n",
		u.Username, u.IsActive, strings.Join(u.RoleNames(), ","))
}

func cmdSetActive(db *gorm.DB, args []string, active bool) {
	fs := flag.NewFlagSet("activate", flag.ExitOnError)
	username := fs.String("username", "", "login name")
	fs.Parse(args)
	if *username == "" {
		fatal("-username is required")
	}

	res := db.Model(&models.User{}).Where("username = ?", *username).Update("is_active", active)
	if res.Error != nil {
		fatal("%v", res.Error)
	}
	if res.RowsAffected == 0 {
		fatal("no such user: %s", *username)
	}
	state := "deactivated"
	if active {
		state = "activated"
	}
	fmt.Printf("%s %s\n", state, *username)
}

func cmdPasswd(db *gorm.DB, svc *user.Service, args []string) {
	fs := flag.NewFlagSet("passwd", flag.ExitOnError)
	username := fs.String("username", "", "login name")
	password := fs.String("password", "", "new password (prompted when omitted)")
	fs.Parse(args)
	if *username == "" {
		fatal("passwd: -username is required")
	}

	pass := *password
	if pass == "" {
		pass = promptPassword()
	}
	hash, err := svc.HashPassword(pass)
	if err != nil {
		fatal("passwd: %v", err)
	}
	res := db.Model(&models.User{}).Where("username = ?", *username).Update("password", hash)
	if res.Error != nil {
		fatal("passwd: %v", res.Error)
	}
	if res.RowsAffected == 0 {
		fatal("no such user: %s", *username)
	}
	fmt.Printf("password updated for %s\n", *username)
}

func cmdSetRoles(svc *user.Service, args []string) {
	fs := flag.NewFlagSet("setroles", flag.ExitOnError)
	username := fs.String("username", "", "login name")
	roles := fs.String("roles", "", "comma-separated role names (empty clears all)")
	fs.Parse(args)
	if *username == "" {
		fatal("setroles: -username is required")
	}

	u := mustGetUser(svc, *username)
	updated, err := svc.SetRoles(u.ID, splitList(*roles))
	if err != nil {
		fatal("setroles: %v", err)
	}
	fmt.Printf("roles for %s: %s\n", updated.Username, strings.Join(updated.RoleNames(), ","))
}

func cmdShowRoles(svc *user.Service, args []string) {
	fs := flag.NewFlagSet("showroles", flag.ExitOnError)
	username := fs.String("username", "", "login name")
	fs.Parse(args)
	if *username == "" {
		fatal("showroles: -username is required")
	}

	u := mustGetUser(svc, *username)
	for _, name := range u.RoleNames() {
		fmt.Println(name)
	}
}

func cmdImport(db *gorm.DB, logger *zap.Logger, args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	file := fs.String("file", "", "JSON-lines dump file")
	fs.Parse(args)
	if *file == "" {
		fatal("import: -file is required")
	}

	f, err := os.Open(*file)
	if err != nil {
		fatal("import: %v", err)
	}
	defer f.Close()

	stats, err := backup.NewImporter(db, logger).Run(f)
	if err != nil {
		fatal("import: %v", err)
	}
	fmt.Printf("imported %d users, %d pages, %d posts, %d tags, %d uploads, %d options (%d ghost links, %d skipped)\n",
		stats.Users, stats.Pages, stats.Posts, stats.Tags, stats.Uploads, stats.Options,
		stats.Linked, stats.Skipped)
}

func mustGetUser(svc *user.Service, username string) *models.User {
	u, err := svc.GetByUsername(username)
	if err != nil {
		fatal("%v", err)
	}
	if u == nil {
		fatal("no such user: %s", username)
	}
	return u
}

func promptPassword() string {
	fmt.Fprint(os.Stderr, "password: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		fatal("reading password: %v", err)
	}
	pass := strings.TrimRight(line, "\r\n")
	if pass == "" {
		fatal("password must not be empty")
	}
	return pass
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
