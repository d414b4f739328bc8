// Package config loads mcpgate configuration.
//
// Resolution order, later layers win:
//
//  1. Built-in defaults (GetDefaultConfig)
//  2. config.yaml in the directory passed with --config-path
//  3. Environment variables (LIBRECHAT_API_BASE_URL, STORAGE_ROOT,
//     RAG_API_URL, CHUNK_SIZE, CHUNK_OVERLAP, HOST, PORT and MCPGATE_*)
//
// Example config.yaml:
//
//	server:
//	  port: 8000
//	  publicUrl: https://mcp.example.com
//	upstream:
//	  baseUrl: http://api:3080/api
//	  timeout: 30s
//	storage:
//	  root: /data/librechat-mcp
//	oauth:
//	  mode: login
//	  codeTTL: 10m
//	identity:
//	  syncCooldown: 30s
package config
