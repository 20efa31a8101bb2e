package internal

// Version is the current version of chmtrans
const Version = "0.3.0"
