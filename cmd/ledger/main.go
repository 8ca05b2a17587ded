// cmd/ledger/main.go
package main

import (
	"go-ledger/app"
)

func main() {
	app.Run()
}
