package srsconverter

// Version is the current release of the converter.
const Version = "0.3.0"
