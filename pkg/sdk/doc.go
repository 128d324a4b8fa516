// Package talkdb provides a Go client for the talkdb HTTP API.
//
// # Search and chat
//
//	client, _ := talkdb.New("http://localhost:8000", talkdb.WithAPIKey(key))
//	res, _ := client.Search(ctx, talkdb.SearchRequest{Query: "how do I reset my password?"})
//
//	for tok, err := range client.ChatStream(ctx, talkdb.SearchRequest{Query: "sales by month", Scope: "all"}) {
//	    if err != nil {
//	        break
//	    }
//	    fmt.Print(tok)
//	}
//
// # Ingestion and SQL
//
//	client.Index(ctx, "confluence", talkdb.ConnectorConfig{"base_url": url, "space_key": "ENG"})
//	client.RegisterSQL(ctx, talkdb.RegisterSQLRequest{Name: "sales", DSN: dsn})
//	ans, _ := client.AskSQL(ctx, talkdb.SQLRequest{Question: "top customers", DBName: "sales"})
package talkdb
