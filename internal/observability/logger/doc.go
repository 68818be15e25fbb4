// Package logger es el zap compartido por ragsd y ragsctl.
//
// Hay un logger de proceso (Init / L) y uno por request que los
// middlewares guardan en el contexto con request_id y account_id.
// Los servicios siempre loguean con From(ctx) y los helpers de fields.go:
//
//	logger.From(ctx).Info("signature validated",
//	    logger.AccountID(id), logger.Algorithm(string(alg)))
//
// Nunca se loguean claves privadas, storage refs completos ni firmas.
package logger
