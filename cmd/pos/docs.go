package main

// @title POS Ledger API
// @version 1.0
// @description Point-of-sale stock and ledger service: sales, returns, stock movements, customer accounts and reconciliation
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://github.com/tair/pos-ledger
// @contact.email support@example.com

// @license.name MIT
// @license.url https://github.com/tair/pos-ledger/blob/main/LICENSE

// @host localhost:8084
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @tag.name Sales
// @tag.description Sales and returns

// @tag.name Products
// @tag.description Product master data and stock movements

// @tag.name Customers
// @tag.description Customer accounts, payments and adjustments

// @tag.name Reconciliation
// @tag.description Ledger consistency checks

// @tag.name Operators
// @tag.description Operator login and administration

// @tag.name Health
// @tag.description Health check endpoints

// @tag.name Swagger
// @tag.description Swagger documentation endpoints
