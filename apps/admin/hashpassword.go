package main

import (
	"fmt"
	"net/mail"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/hocsinh/core"
)

// hashPassword prints the `email:hash` pair to add to ADMIN_ACCOUNTS.
func (cli *commandLine) hashPassword(email, pwd string) error {
	email = core.CleanString(email, true /* lower */)
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email %q", email)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s:%s\n", email, hash)
	return nil
}
