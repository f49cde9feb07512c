package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net"
	"strconv"

	"warbler/config"

	"github.com/go-sql-driver/mysql"
)

// 子表在前
var tables = []string{"likes", "messages", "users"}

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "配置文件路径")
	yes := flag.Bool("yes", false, "跳过确认")
	flag.Parse()

	cfg := config.LoadConfigFrom(*configPath).Database
	if cfg.Driver != "" && cfg.Driver != "mysql" {
		log.Fatalf("reset_db only supports mysql, got driver %q", cfg.Driver)
	}

	dsn := (&mysql.Config{
		User:                 cfg.Username,
		Passwd:               cfg.Password,
		Net:                  "tcp",
		Addr:                 net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		DBName:               cfg.Database,
		Params:               map[string]string{"charset": cfg.Charset},
		ParseTime:            true,
		AllowNativePasswords: true,
	}).FormatDSN()

	// Connect DB
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Database connection test failed: %v", err)
	}

	fmt.Println("Database connected successfully")
	fmt.Printf("Database: %s\n", cfg.Database)

	if !*yes {
		fmt.Printf("\nWARNING: This operation will CLEAR ALL DATA in tables %v!\n", tables)
		fmt.Print("Type 'YES' to confirm: ")
		var confirm string
		_, _ = fmt.Scanln(&confirm)
		if confirm != "YES" {
			fmt.Println("Operation cancelled")
			return
		}
	}

	// Disable FK checks to avoid constraint issues
	_, _ = db.Exec("SET FOREIGN_KEY_CHECKS=0")
	defer func() { _, _ = db.Exec("SET FOREIGN_KEY_CHECKS=1") }()

	for _, table := range tables {
		fmt.Printf("Clearing table %s... ", table)
		if _, err := db.Exec(fmt.Sprintf("DELETE FROM `%s`", table)); err != nil {
			fmt.Printf("Failed: %v\n", err)
		} else {
			fmt.Println("Success")
		}
	}

	// likes 为联合主键，无自增列
	fmt.Println("\nResetting auto-increment IDs...")
	for _, table := range tables[1:] {
		fmt.Printf("Resetting %s auto-increment... ", table)
		if _, err := db.Exec(fmt.Sprintf("ALTER TABLE `%s` AUTO_INCREMENT = 1", table)); err != nil {
			fmt.Printf("Failed: %v\n", err)
		} else {
			fmt.Println("Success")
		}
	}

	fmt.Println("\nDatabase reset completed!")
}
