// Command djqs runs the DataJunction query service and its maintenance tasks.
//
//	djqs serve                       # HTTP API, in-process workers, optional gRPC health
//	djqs worker --workers 8          # queue workers only
//	djqs migrate                     # upgrade the index database
//	djqs migrate:rollback
//	djqs migrate:status
//	djqs seed --file config/djqs.yaml
//	djqs route:list
//
// Configuration comes from config/djqs.json, the dotenv file (.env, or the
// one given with --dotenv) and the environment, in increasing precedence.
package main
