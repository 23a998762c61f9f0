package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

func GenerateAccountID() string {
	return fmt.Sprintf("user-%s", uuid.New().String())
}

func GenerateBetID() string {
	return fmt.Sprintf("bet_%s_%d",
		time.Now().Format("20060102"),
		uuid.New().ID())
}
