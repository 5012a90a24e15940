package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/i5heu/linkchain/internal/keyValStore"
)

func main() {
	path := flag.String("path", "./tmp", "badger directory")
	flag.Parse()

	store, err := keyValStore.NewKeyValStore(keyValStore.StoreConfig{Path: *path})
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	keys, err := store.Keys()
	if err != nil {
		log.Fatal(err)
	}

	for _, key := range keys {
		fmt.Printf("Key: %s\n", key)
	}

	fmt.Printf("Total number of keys: %d\n", len(keys))
}
