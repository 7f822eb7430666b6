package cmd

import (
	"fmt"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with a department tree, users and sample permissions for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := sqlx.Connect("pgx", cfg.Database.Source)
		if err != nil {
			log.Fatalf("failed to connect to db: %v", err)
		}
		defer db.Close()

		if clearData {
			for _, table := range []string{"permission_audit_logs", "field_permissions", "data_permissions", "assets", "users", "departments"} {
				if _, err := db.Exec("DELETE FROM " + table); err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		password := "password"
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

		const orgID = 1

		departments := []struct {
			Name   string
			Parent string
		}{
			{"Engineering", ""},
			{"Backend", "Engineering"},
			{"Frontend", "Engineering"},
			{"Finance", ""},
		}

		deptIDs := map[string]int64{}
		for _, d := range departments {
			var id int64
			if err := db.Get(&id, "SELECT id FROM departments WHERE organization_id = $1 AND name = $2", orgID, d.Name); err == nil {
				deptIDs[d.Name] = id
				continue
			}

			var parentID *int64
			if d.Parent != "" {
				pid := deptIDs[d.Parent]
				parentID = &pid
			}

			if err := db.Get(&id,
				"INSERT INTO departments (organization_id, parent_id, name, created_at, updated_at) VALUES ($1, $2, $3, now(), now()) RETURNING id",
				orgID, parentID, d.Name); err != nil {
				log.Fatalf("failed to insert department %s: %v", d.Name, err)
			}
			deptIDs[d.Name] = id
			fmt.Println("Seeded department:", d.Name)
		}

		users := []struct {
			Email       string
			Name        string
			Department  string
			IsSuperuser bool
		}{
			{"admin@mail.com", "Admin", "", true},
			{"budi@mail.com", "Budi Santoso", "Engineering", false},
			{"siti@mail.com", "Siti Rahma", "Backend", false},
			{"dewi@mail.com", "Dewi Lestari", "Finance", false},
		}

		userIDs := map[string]int64{}
		for _, u := range users {
			var id int64
			if err := db.Get(&id, "SELECT id FROM users WHERE email = $1", u.Email); err == nil {
				userIDs[u.Email] = id
				fmt.Println("user already exists:", u.Email)
				continue
			}

			var deptID *int64
			if u.Department != "" {
				did := deptIDs[u.Department]
				deptID = &did
			}

			if err := db.Get(&id,
				"INSERT INTO users (organization_id, department_id, email, name, password_hash, is_superuser, is_active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, true, now(), now()) RETURNING id",
				orgID, deptID, u.Email, u.Name, string(hash), u.IsSuperuser); err != nil {
				log.Fatalf("failed to insert user %s: %v", u.Email, err)
			}
			userIDs[u.Email] = id
			fmt.Println("Seeded user:", u.Email)
		}

		adminID := userIDs["admin@mail.com"]

		// Budi leads Engineering so scope resolution has a leader to find.
		if _, err := db.Exec("UPDATE departments SET leader_id = $1 WHERE id = $2", userIDs["budi@mail.com"], deptIDs["Engineering"]); err != nil {
			log.Fatalf("failed to set department leader: %v", err)
		}

		dataGrants := []struct {
			Email     string
			Entity    string
			ScopeType string
			Desc      string
		}{
			{"budi@mail.com", "asset", "own_department_and_descendants", "engineering lead sees the whole tree"},
			{"siti@mail.com", "asset", "own_department", "backend staff sees backend assets"},
		}

		for _, g := range dataGrants {
			uid := userIDs[g.Email]
			var exists int
			if err := db.Get(&exists, "SELECT 1 FROM data_permissions WHERE user_id = $1 AND entity_type = $2 AND deleted_at IS NULL", uid, g.Entity); err == nil {
				continue
			}

			if _, err := db.Exec(
				"INSERT INTO data_permissions (user_id, entity_type, scope_type, department_field, user_field, description, created_by, created_at, updated_at) VALUES ($1, $2, $3, 'department_id', 'created_by', $4, $5, now(), now())",
				uid, g.Entity, g.ScopeType, g.Desc, adminID); err != nil {
				log.Fatalf("failed to insert data permission for %s: %v", g.Email, err)
			}
			fmt.Printf("Granted %s scope on %s to %s\n", g.ScopeType, g.Entity, g.Email)
		}

		fieldGrants := []struct {
			Email    string
			Entity   string
			Field    string
			PermType string
			MaskRule string
		}{
			{"siti@mail.com", "asset", "custodian_phone", "masked", "phone"},
			{"siti@mail.com", "asset", "purchase_amount", "hidden", ""},
			{"dewi@mail.com", "asset", "custodian_email", "masked", "email"},
		}

		for _, g := range fieldGrants {
			uid := userIDs[g.Email]
			var exists int
			if err := db.Get(&exists, "SELECT 1 FROM field_permissions WHERE user_id = $1 AND entity_type = $2 AND field_name = $3 AND deleted_at IS NULL", uid, g.Entity, g.Field); err == nil {
				continue
			}

			if _, err := db.Exec(
				"INSERT INTO field_permissions (user_id, entity_type, field_name, permission_type, mask_rule, created_by, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, now(), now())",
				uid, g.Entity, g.Field, g.PermType, g.MaskRule, adminID); err != nil {
				log.Fatalf("failed to insert field permission for %s: %v", g.Email, err)
			}
			fmt.Printf("Added %s rule on %s.%s for %s\n", g.PermType, g.Entity, g.Field, g.Email)
		}

		assets := []struct {
			Name       string
			Department string
			OwnerEmail string
			Phone      string
			Amount     float64
		}{
			{"Thinkpad X1", "Engineering", "budi@mail.com", "13812345678", 25000},
			{"Rack Server", "Backend", "siti@mail.com", "13900001111", 180000},
			{"Office Printer", "Finance", "dewi@mail.com", "13700002222", 800},
		}

		for _, a := range assets {
			var exists int
			if err := db.Get(&exists, "SELECT 1 FROM assets WHERE name = $1 AND deleted_at IS NULL", a.Name); err == nil {
				continue
			}

			if _, err := db.Exec(
				"INSERT INTO assets (organization_id, department_id, created_by, name, serial_number, status, purchase_amount, custodian_name, custodian_phone, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, 'in_use', $6, $7, $8, now(), now())",
				orgID, deptIDs[a.Department], userIDs[a.OwnerEmail], a.Name, "SN-"+a.Name, a.Amount, a.OwnerEmail, a.Phone); err != nil {
				log.Fatalf("failed to insert asset %s: %v", a.Name, err)
			}
			fmt.Println("Seeded asset:", a.Name)
		}

		fmt.Println("Seeding complete. All users share the password:", password)
	},
}
