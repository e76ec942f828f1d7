// Package logger provee un logger Zap global con scoping por contexto.
//
// Inicialización (una vez en main):
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
// En services:
//
//	log := logger.From(ctx).With(logger.Component("tokens"))
//	log.Info("token issued", logger.TokenType(string(t.Type)))
//
// Los tokens y códigos en claro nunca se loguean; solo ids y tipos.
package logger
