// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation,
// so credentials can stay out of the file:
//
//	stream:
//	  key_id: ${APCA_API_KEY_ID}
//	  secret_key: ${APCA_API_SECRET_KEY}
package config
