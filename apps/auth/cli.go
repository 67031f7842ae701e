package auth

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/getevo/evo/v2/lib/args"
	"github.com/getevo/evo/v2/lib/db"
)

// CreateAdminUser creates or resets an HR administrator from the command line
func CreateAdminUser() {
	employeeID := args.Get("-id")
	email := strings.ToLower(args.Get("-email"))
	password := args.Get("-password")
	name := args.Get("-name")
	department := args.Get("-department")

	if employeeID == "" || email == "" || password == "" || name == "" {
		fmt.Println("Usage: ./hrdesk --create-admin -id 1722 -email hr@example.com -password secret123 -name \"HR Admin\" [-department HR]")
		os.Exit(1)
	}
	if department == "" {
		department = "HR"
	}

	var existing Employee
	if err := db.Where("employee_id = ? OR email = ?", employeeID, email).First(&existing).Error; err == nil {
		if err := existing.SetPassword(password); err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		existing.Name = name
		existing.Role = RoleHR
		existing.Status = EmployeeStatusActive

		if err := db.Save(&existing).Error; err != nil {
			log.Fatalf("Failed to update HR administrator: %v", err)
		}

		fmt.Printf("HR administrator already existed - password has been reset:\n")
		fmt.Printf("Employee ID: %s\n", existing.EmployeeID)
		fmt.Printf("Email: %s\n", existing.Email)
		return
	}

	employee := Employee{
		EmployeeID: employeeID,
		Name:       name,
		Email:      email,
		Position:   "HR Administrator",
		Department: department,
		Role:       RoleHR,
		Status:     EmployeeStatusActive,
	}
	if err := employee.SetPassword(password); err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	if err := db.Create(&employee).Error; err != nil {
		log.Fatalf("Failed to create HR administrator: %v", err)
	}

	fmt.Printf("HR administrator created successfully:\n")
	fmt.Printf("Employee ID: %s\n", employee.EmployeeID)
	fmt.Printf("Email: %s\n", employee.Email)
	fmt.Printf("Role: %s\n", employee.Role)
}
