package main

import (
	"log"

	tool "github.com/sandeepkv93/erp-identity-core/internal/tools/migrate"
)

func main() {
	if err := tool.NewRootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}
