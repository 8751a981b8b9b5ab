// Package config загружает конфигурацию Herald из окружения.
//
// Порядок: необязательный .env (godotenv) → переменные окружения (viper)
// → значения по умолчанию. Validate проверяет диапазоны до запуска сервисов.
package config
