// Package config loads the memviz server configuration.
//
// Sources, later ones winning:
//   - built-in defaults (port 8080, data source "online", team "coding",
//     node + lib/vkb-server/db-query-cli.js, 10s/30s timeouts)
//   - an optional YAML file passed with --config
//   - environment variables: PORT, CODING_REPO, CODING_KB_PATH,
//     VKB_DATA_SOURCE, KNOWLEDGE_VIEW, VKB_TEAM_LISTING, KNOWLEDGE_EXPORT_DIR
//
// Positional CLI arguments (port, directory) are applied by the caller after
// Load, followed by another Validate.
package config
