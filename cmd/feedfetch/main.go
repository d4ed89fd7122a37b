package main

import (
	"log"

	"github.com/newschat/rag-backend/internal/builder"
)

func main() {
	if err := builder.FetchFeeds(); err != nil {
		log.Fatal("Feed fetch failed:", err)
	}
}
